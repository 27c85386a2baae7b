//go:build linux

package drmsync

import "unsafe"

// DRM_IOCTL_VERSION, used only to read back the kernel driver name
// behind a render-node fd (SPEC_FULL.md §9 Open Question 2 context:
// "the server is not running on an NVIDIA device", grounded on
// original_source's x11-platform.c calling drmGetVersion and comparing
// version->name against "nvidia-drm").
var ioctlVersion = iowr(drmIoctlBase, 0x00, sizeofDrmVersion)

type drmVersion struct {
	versionMajor      int32
	versionMinor      int32
	versionPatchlevel int32
	_                 int32 // padding to keep the size_t fields 8-byte aligned
	nameLen           uint64
	name              uintptr
	dateLen           uint64
	date              uintptr
	descLen           uint64
	desc              uintptr
}

const sizeofDrmVersion = unsafe.Sizeof(drmVersion{})

// DriverName reads the kernel driver name bound to d's fd (e.g.
// "nvidia-drm", "amdgpu", "i915"). It issues DRM_IOCTL_VERSION twice:
// once with a nil name buffer to learn nameLen, once more into a
// freshly sized buffer.
func (d *Device) DriverName() (string, error) {
	var v drmVersion
	if err := d.ioctl(ioctlVersion, unsafe.Pointer(&v)); err != nil {
		return "", ErrSync
	}
	if v.nameLen == 0 {
		return "", nil
	}
	buf := make([]byte, v.nameLen)
	v.name = uintptr(unsafe.Pointer(&buf[0]))
	if err := d.ioctl(ioctlVersion, unsafe.Pointer(&v)); err != nil {
		return "", ErrSync
	}
	return string(buf), nil
}

// IsNVIDIA reports whether DriverName identifies an NVIDIA render
// node, the check SelectRegime's implicit-sync gate needs.
func (d *Device) IsNVIDIA() bool {
	name, err := d.DriverName()
	return err == nil && name == "nvidia-drm"
}
