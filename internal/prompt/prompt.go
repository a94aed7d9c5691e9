// Package prompt renders sleep analysis results as text for a
// conversational model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/claude/sleepbuddy/internal/models"
)

const sleepIntro = `You are a wellness buddy responsible for analyzing sleep data and providing recommendations.
You are given sleep data and you need to analyze it and provide a recommendation to your buddy.

The stats of the data are as follows:
`

const sleepOutro = `
First analyze the data and the detected anomalies. Then, provide a recommendation to your buddy about what to do in order to
improve their sleep and health and become a better version of themselves.
`

// Stats renders the detection summary block: result message, statistics and
// one line per anomaly.
func Stats(result models.ClassificationResult) string {
	var b strings.Builder
	b.WriteString("Sleep Anomaly Detection Results:\n")
	b.WriteString(result.Message)
	b.WriteString("\n\nStatistics:\n")
	fmt.Fprintf(&b, "Average Sleep Duration: %.2f minutes\n", result.Statistics.AverageDuration)
	fmt.Fprintf(&b, "Standard Deviation: %.2f minutes\n", result.Statistics.StdDuration)
	fmt.Fprintf(&b, "Upper Threshold: %.2f minutes\n", result.Statistics.UpperThreshold)
	fmt.Fprintf(&b, "Lower Threshold: %.2f minutes\n", result.Statistics.LowerThreshold)
	b.WriteString("\nAnomalies:\n")
	if len(result.Anomalies) == 0 {
		b.WriteString("None\n")
	}
	for _, a := range result.Anomalies {
		b.WriteString("- ")
		b.WriteString(a.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

// Sleep wraps the stats block in the wellness-buddy instructions.
func Sleep(result models.ClassificationResult) string {
	return sleepIntro + "\n" + Stats(result) + sleepOutro
}
