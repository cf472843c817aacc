// Package sdp narrows a session description to one preferred codec.
//
// The rewrite is a line-oriented text transformation: no parse tree is built
// and every line outside the targeted media section is passed through
// byte-for-byte, line endings included.
package sdp

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rtxPattern  = regexp.MustCompile(`^a=fmtp:(\d+) apt=(\d+)\s*$`)
	skipPattern = regexp.MustCompile(`^a=(?:fmtp|rtcp-fb|rtpmap):(\d+)`)
)

type rtxPair struct {
	rtx, apt int
}

// Rewrite keeps only the payload types of codec (e.g. "H264/90000") and
// their retransmission (rtx) companions in every mediaKind section of text.
// The section's m= line lists exactly the kept ids in the order they were
// collected; a=rtpmap, a=fmtp and a=rtcp-fb lines of dropped ids are removed.
//
// codec is matched literally. When no mediaKind section declares codec the
// input is returned unchanged. Rewrite is idempotent.
func Rewrite(text, mediaKind, codec string) string {
	allowed := AllowedPayloadTypes(text, mediaKind, codec)
	if len(allowed) == 0 {
		return text
	}

	keep := make(map[int]bool, len(allowed))
	ids := make([]string, len(allowed))
	for i, id := range allowed {
		keep[id] = true
		ids[i] = strconv.Itoa(id)
	}
	mediaLine := regexp.MustCompile(`^(m=` + regexp.QuoteMeta(mediaKind) + ` .*?)(?: [0-9]+)*\s*$`)
	replacement := "${1} " + strings.Join(ids, " ")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inSection := false
	for _, raw := range lines {
		line, cr := trimCR(raw)
		inSection = sectionState(line, mediaKind, inSection)
		if !inSection {
			out = append(out, raw)
			continue
		}
		if m := skipPattern.FindStringSubmatch(line); m != nil {
			if id, _ := strconv.Atoi(m[1]); !keep[id] {
				continue
			}
		} else if mediaLine.MatchString(line) {
			out = append(out, mediaLine.ReplaceAllString(line, replacement)+cr)
			continue
		}
		out = append(out, raw)
	}
	return strings.Join(out, "\n")
}

// AllowedPayloadTypes returns the payload type ids Rewrite would keep:
// every id whose a=rtpmap matches codec, followed by every rtx id whose
// a=fmtp apt= points at a kept id. rtx lines are resolved after all rtpmap
// lines, so their position in the section does not matter.
func AllowedPayloadTypes(text, mediaKind, codec string) []int {
	codecPattern := regexp.MustCompile(`^a=rtpmap:([0-9]+) ` + regexp.QuoteMeta(codec))

	var allowed []int
	seen := make(map[int]bool)
	add := func(id int) bool {
		if seen[id] {
			return false
		}
		seen[id] = true
		allowed = append(allowed, id)
		return true
	}

	var rtx []rtxPair
	inSection := false
	for _, raw := range strings.Split(text, "\n") {
		line, _ := trimCR(raw)
		inSection = sectionState(line, mediaKind, inSection)
		if !inSection {
			continue
		}
		if m := codecPattern.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			add(id)
			continue
		}
		if m := rtxPattern.FindStringSubmatch(line); m != nil {
			r, _ := strconv.Atoi(m[1])
			apt, _ := strconv.Atoi(m[2])
			rtx = append(rtx, rtxPair{rtx: r, apt: apt})
		}
	}

	// Repeat until stable so chains of associations resolve regardless of order.
	for changed := len(allowed) > 0; changed; {
		changed = false
		for _, p := range rtx {
			if seen[p.apt] && add(p.rtx) {
				changed = true
			}
		}
	}
	return allowed
}

func sectionState(line, mediaKind string, inSection bool) bool {
	if strings.HasPrefix(line, "m="+mediaKind+" ") {
		return true
	}
	if strings.HasPrefix(line, "m=") {
		return false
	}
	return inSection
}

func trimCR(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}
