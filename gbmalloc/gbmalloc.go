//go:build linux

// Package gbmalloc wraps the userspace kernel-allocator front end (GBM)
// used to obtain format-modifier-aware DMA-buffers (SPEC_FULL.md §6
// "GBM allocator"). It is an external collaborator (out of scope: "the
// driver entry-point loader" owns the device choice), but the
// allocation calls themselves are real and exercised by colorbuf.Pool.
package gbmalloc

// #cgo pkg-config: gbm
// #include <gbm.h>
// #include <stdlib.h>
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrAlloc means gbm_bo_create_with_modifiers2/gbm_bo_import failed.
var ErrAlloc = errors.New("gbmalloc: allocation failure")

// Device wraps a gbm_device created over an already-open DRM fd. The
// caller owns fd's lifetime; Device never closes it.
type Device struct {
	dev *C.struct_gbm_device
	fd  int
}

// NewDevice creates a gbm_device over fd.
func NewDevice(fd int) (*Device, error) {
	dev := C.gbm_create_device(C.int(fd))
	if dev == nil {
		return nil, fmt.Errorf("%w: gbm_create_device", ErrAlloc)
	}
	return &Device{dev: dev, fd: fd}, nil
}

// Destroy releases the gbm_device. It does not close the underlying fd.
func (d *Device) Destroy() {
	if d == nil || d.dev == nil {
		return
	}
	C.gbm_device_destroy(d.dev)
	d.dev = nil
}

// BufferObject wraps a gbm_bo: a single, single-plane DMA-buffer-backed
// allocation (SPEC_FULL.md Non-goals exclude multi-plane formats, so
// this type only ever reports plane 0).
type BufferObject struct {
	bo *C.struct_gbm_bo
}

// CreateWithModifiers2 allocates a new renderable buffer of the given
// size/format, constrained to one of modifiers (SPEC_FULL.md §6
// "gbm_bo_create_with_modifiers2"). The allocator is free to pick
// whichever of the candidate modifiers it likes; Modifier() reports
// which one it actually used.
func (d *Device) CreateWithModifiers2(width, height int, fourcc uint32, modifiers []uint64) (*BufferObject, error) {
	if len(modifiers) == 0 {
		return nil, fmt.Errorf("%w: no candidate modifiers", ErrAlloc)
	}
	cmods := make([]C.uint64_t, len(modifiers))
	for i, m := range modifiers {
		cmods[i] = C.uint64_t(m)
	}
	bo := C.gbm_bo_create_with_modifiers2(
		d.dev,
		C.uint32_t(width), C.uint32_t(height), C.uint32_t(fourcc),
		&cmods[0], C.int(len(cmods)),
		C.GBM_BO_USE_RENDERING,
	)
	if bo == nil {
		return nil, fmt.Errorf("%w: gbm_bo_create_with_modifiers2", ErrAlloc)
	}
	return &BufferObject{bo: bo}, nil
}

// Import wraps an existing DMA-buffer fd as a gbm_bo (SPEC_FULL.md §6
// "gbm_bo_import(FD_MODIFIER)"), used to re-import a linear
// intermediate allocated on the renderer GPU for use as a direct-pool
// buffer on the display GPU, or vice versa.
func (d *Device) Import(fd int, width, height int, fourcc uint32, stride uint32, modifier uint64) (*BufferObject, error) {
	data := C.struct_gbm_import_fd_modifier_data{
		width:     C.uint32_t(width),
		height:    C.uint32_t(height),
		format:    C.uint32_t(fourcc),
		num_fds:   1,
		modifier:  C.uint64_t(modifier),
	}
	data.fds[0] = C.int(fd)
	data.strides[0] = C.int(stride)
	data.offsets[0] = 0
	bo := C.gbm_bo_import(d.dev, C.GBM_BO_IMPORT_FD_MODIFIER, unsafe.Pointer(&data), C.GBM_BO_USE_RENDERING)
	if bo == nil {
		return nil, fmt.Errorf("%w: gbm_bo_import", ErrAlloc)
	}
	return &BufferObject{bo: bo}, nil
}

// FD exports the buffer object as a DMA-buffer file descriptor. The
// caller owns the returned fd and must dup it before handing it to an
// X request (SPEC_FULL.md §5 "Ownership of file descriptors").
func (b *BufferObject) FD() (int, error) {
	fd := C.gbm_bo_get_fd(b.bo)
	if fd < 0 {
		return -1, fmt.Errorf("%w: gbm_bo_get_fd", ErrAlloc)
	}
	return int(fd), nil
}

// Stride returns the buffer's plane-0 stride in bytes.
func (b *BufferObject) Stride() uint32 { return uint32(C.gbm_bo_get_stride(b.bo)) }

// Offset returns the buffer's plane-0 offset in bytes (always 0 for
// the single-plane formats this adapter supports).
func (b *BufferObject) Offset() uint32 { return uint32(C.gbm_bo_get_offset(b.bo, 0)) }

// Modifier returns the format modifier the allocator actually chose.
func (b *BufferObject) Modifier() uint64 { return uint64(C.gbm_bo_get_modifier(b.bo)) }

// Destroy releases the buffer object.
func (b *BufferObject) Destroy() {
	if b == nil || b.bo == nil {
		return
	}
	C.gbm_bo_destroy(b.bo)
	b.bo = nil
}
