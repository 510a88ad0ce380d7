package ortb

import (
	"fmt"

	"github.com/prebid/openrtb/v20/openrtb2"
)

type mediaField struct {
	name  string
	value int64
}

func derefOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// firstNegative returns an error for the first field holding a negative value.
func firstNegative(impIndex int, path string, fields ...mediaField) error {
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("request.imp[%d].%s.%s must be a positive number", impIndex, path, f.name)
		}
	}
	return nil
}

func validateBanner(banner *openrtb2.Banner, impIndex int, isInterstitial bool) error {
	if banner == nil {
		return nil
	}

	w, h := derefOrZero(banner.W), derefOrZero(banner.H)
	if err := firstNegative(impIndex, "banner", mediaField{"w", w}, mediaField{"h", h}); err != nil {
		return err
	}

	if (w == 0 || h == 0) && len(banner.Format) == 0 && !isInterstitial {
		return fmt.Errorf("request.imp[%d].banner has no sizes. Define \"w\" and \"h\", or include \"format\" elements.", impIndex)
	}

	for i := range banner.Format {
		if err := validateFormat(&banner.Format[i], impIndex, i); err != nil {
			return err
		}
	}
	return nil
}

// validateFormat accepts either a static {w, h} size or a flexible {wmin, wratio, hratio} one.
func validateFormat(format *openrtb2.Format, impIndex, formatIndex int) error {
	path := fmt.Sprintf("banner.format[%d]", formatIndex)
	if err := firstNegative(impIndex, path,
		mediaField{"w", format.W},
		mediaField{"h", format.H},
		mediaField{"wratio", format.WRatio},
		mediaField{"hratio", format.HRatio},
		mediaField{"wmin", format.WMin},
	); err != nil {
		return err
	}

	usesHW := format.W != 0 || format.H != 0
	usesRatios := format.WMin != 0 || format.WRatio != 0 || format.HRatio != 0

	switch {
	case usesHW && usesRatios:
		return fmt.Errorf("Request imp[%d].banner.format[%d] should define *either* {w, h} *or* {wmin, wratio, hratio}, but not both. If both are valid, send two \"format\" objects in the request.", impIndex, formatIndex)
	case !usesHW && !usesRatios:
		return fmt.Errorf("Request imp[%d].banner.format[%d] should define *either* {w, h} (for static size requirements) *or* {wmin, wratio, hratio} (for flexible sizes) to be non-zero.", impIndex, formatIndex)
	case usesHW && (format.W == 0 || format.H == 0):
		return fmt.Errorf("Request imp[%d].banner.format[%d] must define non-zero \"h\" and \"w\" properties.", impIndex, formatIndex)
	case usesRatios && (format.WMin == 0 || format.WRatio == 0 || format.HRatio == 0):
		return fmt.Errorf("Request imp[%d].banner.format[%d] must define non-zero \"wmin\", \"wratio\", and \"hratio\" properties.", impIndex, formatIndex)
	}
	return nil
}

func validateVideo(video *openrtb2.Video, impIndex int) error {
	if video == nil {
		return nil
	}
	if len(video.MIMEs) == 0 {
		return fmt.Errorf("request.imp[%d].video.mimes must contain at least one supported MIME type", impIndex)
	}
	return firstNegative(impIndex, "video",
		mediaField{"w", derefOrZero(video.W)},
		mediaField{"h", derefOrZero(video.H)},
		mediaField{"minbitrate", video.MinBitRate},
		mediaField{"maxbitrate", video.MaxBitRate},
	)
}

func validateAudio(audio *openrtb2.Audio, impIndex int) error {
	if audio == nil {
		return nil
	}
	if len(audio.MIMEs) == 0 {
		return fmt.Errorf("request.imp[%d].audio.mimes must contain at least one supported MIME type", impIndex)
	}
	return firstNegative(impIndex, "audio",
		mediaField{"sequence", int64(audio.Sequence)},
		mediaField{"maxseq", int64(audio.MaxSeq)},
		mediaField{"minbitrate", int64(audio.MinBitrate)},
		mediaField{"maxbitrate", int64(audio.MaxBitrate)},
	)
}
