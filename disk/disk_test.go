package disk

import (
	"testing"
)

func TestSystemMount(t *testing.T) {
	testCases := []struct {
		mount    string
		expected bool
	}{
		{"/", true},
		{"/boot", true},
		{"/boot/efi", true},
		{"/run/lock", true},
		{"/dev/shm", true},
		{"/proc", true},
		{"/sys/fs/cgroup", true},
		{"/mnt/data", false},
		{"/var/lib/postgresql", false},
		{"/home", false},
	}

	for _, testCase := range testCases {
		answer := systemMount(testCase.mount)
		if answer != testCase.expected {
			t.Errorf("For %s expected %t, got %t", testCase.mount, testCase.expected, answer)
		}
	}
}

func TestDetectVolumeMountOverride(t *testing.T) {
	answer := DetectVolumeMount("/mnt/volume_sfo3_01")
	if answer != "/mnt/volume_sfo3_01" {
		t.Errorf("Expected override to win, got %s", answer)
	}
}

func TestPctUsed(t *testing.T) {
	if pctUsed(50, 200) != 25.0 {
		t.Errorf("Expected 25.0, got %f", pctUsed(50, 200))
	}
	if pctUsed(1, 0) != 0 {
		t.Errorf("Expected 0 for zero total, got %f", pctUsed(1, 0))
	}
}
