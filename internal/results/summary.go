package results

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Summary renders a detection result as chat text. The class list (or an
// explicit no-objects line) comes first; the original image reference and
// record timestamp follow for traceability.
func Summary(result DetectionResult) string {
	var b strings.Builder

	if len(result.Labels) == 0 {
		b.WriteString("No objects detected.")
	} else {
		parts := make([]string, 0, len(result.Labels))
		for _, label := range result.Labels {
			parts = append(parts, describeLabel(label))
		}
		b.WriteString("Detected: ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if result.OriginalImgPath != "" {
		b.WriteString("\nImage: ")
		b.WriteString(result.OriginalImgPath)
	}
	b.WriteString("\nProcessed at ")
	b.WriteString(result.Time.UTC().Format(time.RFC3339))

	return b.String()
}

// describeLabel appends a frame-share percentage when the detector supplied
// normalized box dimensions.
func describeLabel(label Label) string {
	if label.Width <= 0 || label.Height <= 0 {
		return label.Class
	}
	share := label.Width * label.Height * 100
	pct := int(math.Round(share))
	if pct < 1 {
		pct = 1
	}
	return fmt.Sprintf("%s (~%d%% of frame)", label.Class, pct)
}
