//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs f_type magic numbers.
var linuxFSMagic = map[uint64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
	0xEF53:     "ext4",
	0x58465342: "xfs",
	0x9123683E: "btrfs",
	0x01021994: "tmpfs",
	0x794C7630: "overlayfs",
}

func detectFilesystemType(path string) (string, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}

	magic := uint64(stat.Type) & 0xFFFFFFFF
	name, ok := linuxFSMagic[magic]
	if !ok {
		name = fmt.Sprintf("0x%x", magic)
	}
	return name, nil
}
