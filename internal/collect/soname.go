package collect

import (
	"maps"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var versionedSO = regexp.MustCompile(`^(lib.+\.so)\.(\d+(?:\.\d+)*)$`)

type soVersion struct {
	file    string
	version []int
}

func parseVersion(s string) []int {
	parts := strings.Split(s, ".")
	v := make([]int, len(parts))
	for i, p := range parts {
		v[i], _ = strconv.Atoi(p)
	}
	return v
}

// normalizeSharedObjects writes lib<name>.so next to every collected
// lib<name>.so.<version> as a plain copy of the highest version. It
// returns the files it wrote.
func normalizeSharedObjects(stage string, files []string) ([]string, error) {
	best := make(map[string]soVersion)
	for _, f := range files {
		m := versionedSO.FindStringSubmatch(path.Base(f))
		if m == nil {
			continue
		}
		link := path.Join(path.Dir(f), m[1])
		cand := soVersion{file: f, version: parseVersion(m[2])}
		if cur, ok := best[link]; !ok || slices.Compare(cand.version, cur.version) > 0 {
			best[link] = cand
		}
	}

	links := slices.Sorted(maps.Keys(best))
	for _, link := range links {
		src := filepath.Join(stage, filepath.FromSlash(best[link].file))
		if err := copyFile(filepath.Join(stage, filepath.FromSlash(link)), src); err != nil {
			return nil, err
		}
	}
	return links, nil
}
