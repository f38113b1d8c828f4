package spec

import (
	"strings"
	"time"

	"github.com/punit-dev/punit/internal/footprint"
)

const (
	// Extension of every stored specification file.
	Extension = ".yaml"

	timestampLayout = "20060102-1504"
)

// Name builds the storage filename for a specification:
// {useCaseId}-{YYYYMMDD-HHMM}-{footprint}-{covHash...}.yaml. The covariate
// hashes follow the declaration order of the run that produced the file.
func Name(useCaseID string, generatedAt time.Time, fp string, covHashes []string) string {
	parts := make([]string, 0, 3+len(covHashes))
	parts = append(parts, useCaseID, generatedAt.UTC().Format(timestampLayout), fp)
	parts = append(parts, covHashes...)
	return strings.Join(parts, "-") + Extension
}

// NameInfo is the identity carried by a specification filename.
type NameInfo struct {
	UseCaseID   string
	GeneratedAt time.Time // zero for legacy names
	Footprint   string
	CovHashes   []string
	Legacy      bool
}

// ParseName interprets base as a stored specification for the given use
// case. It accepts both the current convention and the legacy
// {useCaseId}-{footprint}-{covHash...}.yaml form without a timestamp. ok is
// false when the name belongs to another use case or follows neither
// convention.
func ParseName(base, useCaseID string) (NameInfo, bool) {
	stem, found := strings.CutSuffix(base, Extension)
	if !found || useCaseID == "" {
		return NameInfo{}, false
	}
	rest, found := strings.CutPrefix(stem, useCaseID+"-")
	if !found {
		return NameInfo{}, false
	}
	segments := strings.Split(rest, "-")

	if len(segments) >= 3 {
		if at, err := time.ParseInLocation(timestampLayout, segments[0]+"-"+segments[1], time.UTC); err == nil {
			if info, ok := tail(useCaseID, at, segments[2], segments[3:]); ok {
				return info, true
			}
		}
	}
	if len(segments) >= 1 {
		if info, ok := tail(useCaseID, time.Time{}, segments[0], segments[1:]); ok {
			info.Legacy = true
			return info, true
		}
	}
	return NameInfo{}, false
}

func tail(useCaseID string, at time.Time, fp string, covHashes []string) (NameInfo, bool) {
	if !footprint.Valid(fp) {
		return NameInfo{}, false
	}
	for _, h := range covHashes {
		if !footprint.Valid(h) {
			return NameInfo{}, false
		}
	}
	hashes := make([]string, len(covHashes))
	copy(hashes, covHashes)
	return NameInfo{
		UseCaseID:   useCaseID,
		GeneratedAt: at,
		Footprint:   fp,
		CovHashes:   hashes,
	}, true
}
