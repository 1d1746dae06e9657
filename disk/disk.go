// Package disk records daily filesystem usage snapshots so the dashboard can
// chart how fast the option tables are eating the data volume.
package disk

import (
	"fmt"
	"strings"
	"time"

	gopsdisk "github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"

	"github.com/erikbryant/optionsdb/store"
)

var systemMounts = []string{"/", "/boot", "/boot/efi"}
var systemPrefixes = []string{"/run", "/dev", "/proc", "/sys"}

// systemMount reports whether a mountpoint belongs to the OS rather than data.
func systemMount(mount string) bool {
	for _, m := range systemMounts {
		if mount == m {
			return true
		}
	}
	for _, p := range systemPrefixes {
		if strings.HasPrefix(mount, p) {
			return true
		}
	}
	return false
}

// DetectVolumeMount finds the data volume: the largest mounted partition that
// is not a system mount. An explicit override wins; with no candidate it
// falls back to root, making the two snapshot columns identical.
func DetectVolumeMount(override string) string {
	if override != "" {
		return override
	}

	partitions, err := gopsdisk.Partitions(false)
	if err != nil {
		log.Warnf("unable to list partitions: %v", err)
		return "/"
	}

	best := "/"
	var bestTotal uint64

	for _, p := range partitions {
		if systemMount(p.Mountpoint) {
			continue
		}
		usage, err := gopsdisk.Usage(p.Mountpoint)
		if err != nil {
			continue
		}
		if usage.Total > bestTotal {
			bestTotal = usage.Total
			best = p.Mountpoint
		}
	}

	return best
}

// Sink receives snapshots; the store enforces the one-per-day rule.
type Sink interface {
	InsertDiskSnapshot(row store.DiskRow) error
}

// bytesToGB converts for log output only; the stored values stay in bytes.
func bytesToGB(b int64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

func pctUsed(used, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}

// Snapshot records one usage sample for the root mount and the data volume.
func Snapshot(db Sink, rootPath, volumeOverride string, now time.Time) error {
	if rootPath == "" {
		rootPath = "/"
	}
	volumePath := DetectVolumeMount(volumeOverride)

	rootUsage, err := gopsdisk.Usage(rootPath)
	if err != nil {
		return fmt.Errorf("unable to stat %s %s", rootPath, err)
	}

	volUsage, err := gopsdisk.Usage(volumePath)
	if err != nil {
		return fmt.Errorf("unable to stat %s %s", volumePath, err)
	}

	row := store.DiskRow{
		CapturedAt:     now.UTC(),
		RootPath:       rootPath,
		VolumePath:     volumePath,
		RootTotalBytes: int64(rootUsage.Total),
		RootUsedBytes:  int64(rootUsage.Used),
		VolTotalBytes:  int64(volUsage.Total),
		VolUsedBytes:   int64(volUsage.Used),
	}

	if err := db.InsertDiskSnapshot(row); err != nil {
		return err
	}

	log.Infof("snapshot day=%s root %.2f/%.2f GB (%.2f%%) vol %.2f/%.2f GB (%.2f%%) volume_path=%s",
		now.UTC().Format("2006-01-02"),
		bytesToGB(row.RootUsedBytes), bytesToGB(row.RootTotalBytes), pctUsed(row.RootUsedBytes, row.RootTotalBytes),
		bytesToGB(row.VolUsedBytes), bytesToGB(row.VolTotalBytes), pctUsed(row.VolUsedBytes, row.VolTotalBytes),
		volumePath)

	return nil
}
