package generation

import "strings"

// DefaultFPS is the frame rate assumed by the duration-to-frames mapping.
const DefaultFPS = 16

// SizeFor maps a model and aspect ratio to the pixel dimensions the
// generation API expects. 480p-class models and CogVideoX use their own
// resolution tables.
func SizeFor(model, aspectRatio string) string {
	if strings.Contains(model, "cogvideox") {
		switch aspectRatio {
		case "9:16":
			return "768x1360"
		default:
			return "1360x768"
		}
	}

	is480p := strings.Contains(model, "480p") || strings.Contains(model, "wan2.1-t2v")
	if is480p {
		switch aspectRatio {
		case "9:16":
			return "480x832"
		case "1:1":
			return "480x480"
		case "21:9":
			return "832x352"
		default: // 16:9
			return "832x480"
		}
	}

	switch aspectRatio {
	case "9:16":
		return "720x1280"
	case "1:1":
		return "720x720"
	case "21:9":
		return "1280x544"
	default: // 16:9
		return "1280x720"
	}
}

// FramesFor maps a duration label to a frame count at DefaultFPS.
func FramesFor(duration string) int {
	if duration == "10s" {
		return 161
	}
	return 81
}
