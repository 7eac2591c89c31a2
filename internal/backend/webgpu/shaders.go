//go:build windows

package webgpu

// WGSL kernels. One invocation per output element on the forward path and
// one per input element on the backward path; the backward kernels gather
// over the windows covering their element, so every buffer position has a
// single writer and no atomics are needed.

const shaderHeader = `
struct Params {
    n: u32,
    c: u32,
    h: u32,
    w: u32,
    out_h: u32,
    out_w: u32,
    kh: u32,
    kw: u32,
    sh: u32,
    sw: u32,
    pad_t: u32,
    pad_l: u32,
    include_pad: u32,
}
`

const maxForwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<storage, read_write> ws: array<u32>;
@group(0) @binding(3) var<uniform> p: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let total = p.n * p.c * p.out_h * p.out_w;
    if (i >= total) {
        return;
    }

    let ow = i % p.out_w;
    let oh = (i / p.out_w) % p.out_h;
    let ch = (i / (p.out_w * p.out_h)) % p.c;
    let n = i / (p.out_w * p.out_h * p.c);

    var hs = i32(oh * p.sh) - i32(p.pad_t);
    var he = hs + i32(p.kh);
    hs = max(hs, 0);
    he = min(he, i32(p.h));
    var cs = i32(ow * p.sw) - i32(p.pad_l);
    var ce = cs + i32(p.kw);
    cs = max(cs, 0);
    ce = min(ce, i32(p.w));

    let plane = (n * p.c + ch) * p.h * p.w;
    var best = -3.40282e38;
    var best_idx = plane + u32(hs) * p.w + u32(cs);

    for (var hh = hs; hh < he; hh = hh + 1) {
        for (var ww = cs; ww < ce; ww = ww + 1) {
            let idx = plane + u32(hh) * p.w + u32(ww);
            let val = src[idx];
            if (val > best) {
                best = val;
                best_idx = idx;
            }
        }
    }

    dst[i] = best;
    ws[i] = best_idx;
}
`

const avgForwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> p: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let total = p.n * p.c * p.out_h * p.out_w;
    if (i >= total) {
        return;
    }

    let ow = i % p.out_w;
    let oh = (i / p.out_w) % p.out_h;
    let ch = (i / (p.out_w * p.out_h)) % p.c;
    let n = i / (p.out_w * p.out_h * p.c);

    var hs = i32(oh * p.sh) - i32(p.pad_t);
    var he = hs + i32(p.kh);
    hs = max(hs, 0);
    he = min(he, i32(p.h));
    var cs = i32(ow * p.sw) - i32(p.pad_l);
    var ce = cs + i32(p.kw);
    cs = max(cs, 0);
    ce = min(ce, i32(p.w));

    let plane = (n * p.c + ch) * p.h * p.w;
    var sum = 0.0;
    for (var hh = hs; hh < he; hh = hh + 1) {
        for (var ww = cs; ww < ce; ww = ww + 1) {
            sum = sum + src[plane + u32(hh) * p.w + u32(ww)];
        }
    }

    var div = f32(p.kh * p.kw);
    if (p.include_pad == 0u) {
        div = f32((he - hs) * (ce - cs));
    }
    dst[i] = sum / div;
}
`

const maxBackwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read> diff_dst: array<f32>;
@group(0) @binding(1) var<storage, read_write> diff_src: array<f32>;
@group(0) @binding(2) var<storage, read> ws: array<u32>;
@group(0) @binding(3) var<uniform> p: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let total = p.n * p.c * p.h * p.w;
    if (i >= total) {
        return;
    }

    let w = i % p.w;
    let h = (i / p.w) % p.h;
    let ch = (i / (p.w * p.h)) % p.c;
    let n = i / (p.w * p.h * p.c);

    // Output rows/cols whose windows cover (h, w).
    let hp = i32(h + p.pad_t);
    let wp = i32(w + p.pad_l);
    var oh_min = (hp - i32(p.kh) + i32(p.sh)) / i32(p.sh);
    oh_min = max(oh_min, 0);
    let oh_max = min(hp / i32(p.sh), i32(p.out_h) - 1);
    var ow_min = (wp - i32(p.kw) + i32(p.sw)) / i32(p.sw);
    ow_min = max(ow_min, 0);
    let ow_max = min(wp / i32(p.sw), i32(p.out_w) - 1);

    let out_plane = (n * p.c + ch) * p.out_h * p.out_w;
    var acc = 0.0;
    for (var oh = oh_min; oh <= oh_max; oh = oh + 1) {
        for (var ow = ow_min; ow <= ow_max; ow = ow + 1) {
            let out_idx = out_plane + u32(oh) * p.out_w + u32(ow);
            if (ws[out_idx] == i) {
                acc = acc + diff_dst[out_idx];
            }
        }
    }
    diff_src[i] = acc;
}
`

const avgBackwardShader = shaderHeader + `
@group(0) @binding(0) var<storage, read> diff_dst: array<f32>;
@group(0) @binding(1) var<storage, read_write> diff_src: array<f32>;
@group(0) @binding(2) var<uniform> p: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let total = p.n * p.c * p.h * p.w;
    if (i >= total) {
        return;
    }

    let w = i % p.w;
    let h = (i / p.w) % p.h;
    let ch = (i / (p.w * p.h)) % p.c;
    let n = i / (p.w * p.h * p.c);

    let hp = i32(h + p.pad_t);
    let wp = i32(w + p.pad_l);
    var oh_min = (hp - i32(p.kh) + i32(p.sh)) / i32(p.sh);
    oh_min = max(oh_min, 0);
    let oh_max = min(hp / i32(p.sh), i32(p.out_h) - 1);
    var ow_min = (wp - i32(p.kw) + i32(p.sw)) / i32(p.sw);
    ow_min = max(ow_min, 0);
    let ow_max = min(wp / i32(p.sw), i32(p.out_w) - 1);

    let out_plane = (n * p.c + ch) * p.out_h * p.out_w;
    var acc = 0.0;
    for (var oh = oh_min; oh <= oh_max; oh = oh + 1) {
        for (var ow = ow_min; ow <= ow_max; ow = ow + 1) {
            var hs = oh * i32(p.sh) - i32(p.pad_t);
            var he = hs + i32(p.kh);
            hs = max(hs, 0);
            he = min(he, i32(p.h));
            var cs = ow * i32(p.sw) - i32(p.pad_l);
            var ce = cs + i32(p.kw);
            cs = max(cs, 0);
            ce = min(ce, i32(p.w));

            var div = f32(p.kh * p.kw);
            if (p.include_pad == 0u) {
                div = f32((he - hs) * (ce - cs));
            }
            acc = acc + diff_dst[out_plane + u32(oh) * p.out_w + u32(ow)] / div;
        }
    }
    diff_src[i] = acc;
}
`
