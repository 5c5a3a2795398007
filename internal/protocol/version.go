package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Version is a client protocol version triple. It travels on the wire as a
// three-element JSON array, e.g. [11,0,2].
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Less reports whether v precedes o in lexicographic (major, minor, patch)
// order. The version gate admits a client iff !client.Less(min).
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses a dotted "major.minor.patch" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("protocol: malformed version %q", s)
	}
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Version{}, fmt.Errorf("protocol: malformed version %q: %w", s, err)
		}
		nums[i] = uint8(n)
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MarshalJSON encodes the version as a [major, minor, patch] array.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{v.Major, v.Minor, v.Patch})
}

// UnmarshalJSON accepts a three-element array.
func (v *Version) UnmarshalJSON(data []byte) error {
	var arr [3]uint8
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("protocol: malformed version tuple: %w", err)
	}
	v.Major, v.Minor, v.Patch = arr[0], arr[1], arr[2]
	return nil
}
