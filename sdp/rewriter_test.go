package sdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

func crlf(l ...string) string {
	return strings.Join(l, "\r\n") + "\r\n"
}

func TestRewriteMinimalExample(t *testing.T) {
	in := lines(
		"m=video 9 96 97 98",
		"a=rtpmap:96 H264/90000",
		"a=fmtp:97 apt=96",
		"a=rtpmap:98 VP8/90000",
	)
	want := lines(
		"m=video 9 96 97",
		"a=rtpmap:96 H264/90000",
		"a=fmtp:97 apt=96",
	)
	assert.Equal(t, want, Rewrite(in, "video", "H264/90000"))
}

var browserOffer = crlf(
	"v=0",
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1",
	"s=-",
	"t=0 0",
	"a=group:BUNDLE 0 1",
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 0",
	"c=IN IP4 0.0.0.0",
	"a=mid:0",
	"a=rtpmap:111 opus/48000/2",
	"a=rtcp-fb:111 transport-cc",
	"a=fmtp:111 minptime=10;useinbandfec=1",
	"a=rtpmap:0 PCMU/8000",
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97 102 103 98 99",
	"c=IN IP4 0.0.0.0",
	"a=mid:1",
	"a=sendonly",
	"a=rtpmap:96 VP8/90000",
	"a=rtcp-fb:96 nack",
	"a=rtpmap:97 rtx/90000",
	"a=fmtp:97 apt=96",
	"a=rtpmap:102 H264/90000",
	"a=rtcp-fb:102 goog-remb",
	"a=rtcp-fb:102 nack",
	"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
	"a=rtpmap:103 rtx/90000",
	"a=fmtp:103 apt=102",
	"a=rtpmap:98 VP9/90000",
	"a=rtcp-fb:98 nack",
	"a=rtpmap:99 rtx/90000",
	"a=fmtp:99 apt=98",
	"a=rtcp-fb:* ccm fir",
)

func TestRewriteBrowserOffer(t *testing.T) {
	out := Rewrite(browserOffer, "video", "H264/90000")

	want := crlf(
		"v=0",
		"o=- 4611731400430051336 2 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"a=group:BUNDLE 0 1",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111 0",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=rtpmap:111 opus/48000/2",
		"a=rtcp-fb:111 transport-cc",
		"a=fmtp:111 minptime=10;useinbandfec=1",
		"a=rtpmap:0 PCMU/8000",
		"m=video 9 UDP/TLS/RTP/SAVPF 102 103",
		"c=IN IP4 0.0.0.0",
		"a=mid:1",
		"a=sendonly",
		"a=rtpmap:102 H264/90000",
		"a=rtcp-fb:102 goog-remb",
		"a=rtcp-fb:102 nack",
		"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
		"a=rtpmap:103 rtx/90000",
		"a=fmtp:103 apt=102",
		"a=rtcp-fb:* ccm fir",
	)
	assert.Equal(t, want, out)

	formats, err := MediaFormats(out, "video")
	require.NoError(t, err)
	assert.Equal(t, []string{"102", "103"}, formats)

	audio, err := MediaFormats(out, "audio")
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "0"}, audio)
}

func TestRewriteIsIdempotent(t *testing.T) {
	for _, in := range []string{browserOffer, lines("m=video 9 96 97 98", "a=rtpmap:96 H264/90000", "a=fmtp:97 apt=96")} {
		once := Rewrite(in, "video", "H264/90000")
		assert.Equal(t, once, Rewrite(once, "video", "H264/90000"))
	}
}

func TestRewriteWithoutTargetSectionIsNoop(t *testing.T) {
	in := crlf(
		"v=0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
	)
	assert.Equal(t, in, Rewrite(in, "video", "H264/90000"))
}

func TestRewriteWithoutMatchingCodecIsNoop(t *testing.T) {
	in := lines("m=video 9 96", "a=rtpmap:96 VP8/90000")
	assert.Equal(t, in, Rewrite(in, "video", "H264/90000"))
}

func TestRewriteEscapesCodec(t *testing.T) {
	in := lines(
		"m=video 9 96 100",
		"a=rtpmap:96 H264/90000",
		"a=rtpmap:100 H.264+x/90000",
	)
	// "." and "+" are literal, so only 100 matches.
	assert.Equal(t, lines("m=video 9 100", "a=rtpmap:100 H.264+x/90000"), Rewrite(in, "video", "H.264+x/90000"))
	// As a regex "H.64" would match "H264".
	assert.Equal(t, in, Rewrite(in, "video", "H.64/90000"))
}

func TestAllowedPayloadTypesResolvesRtxBeforeRtpmap(t *testing.T) {
	in := lines(
		"m=video 9 97 96",
		"a=fmtp:97 apt=96",
		"a=rtpmap:97 rtx/90000",
		"a=rtpmap:96 H264/90000",
	)
	assert.Equal(t, []int{96, 97}, AllowedPayloadTypes(in, "video", "H264/90000"))
}

func TestAllowedPayloadTypesSkipsOtherSections(t *testing.T) {
	in := lines(
		"m=audio 9 96",
		"a=rtpmap:96 H264/90000",
		"m=video 9 100",
		"a=rtpmap:100 H264/90000",
	)
	assert.Equal(t, []int{100}, AllowedPayloadTypes(in, "video", "H264/90000"))
	out := Rewrite(in, "video", "H264/90000")
	assert.Contains(t, out, "m=audio 9 96\na=rtpmap:96 H264/90000")
}

func TestMediaFormatsErrors(t *testing.T) {
	_, err := MediaFormats("not an sdp", "video")
	assert.Error(t, err)

	_, err = MediaFormats(crlf("v=0", "o=- 1 2 IN IP4 127.0.0.1", "s=-", "t=0 0"), "video")
	assert.ErrorIs(t, err, ErrNoMediaSection)
}
