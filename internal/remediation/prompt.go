package remediation

import (
	"strings"

	"github.com/JaimeStill/safestack/internal/alerts"
)

const promptTemplate = `You are a safety compliance visualization expert.

Violation detected: {POLICY_NAME}
Description: {DESCRIPTION}
Reasoning: {REASONING}

How to fix: {FIX}

Edit this image to show how the scene SHOULD look after applying the fix above:
- Apply the specific fix described to correct the safety hazard
- Show the compliant, safe state as if the fix has been implemented
- Keep the overall scene, setting, and context identical
- The result should be a realistic visualization of a safe, compliant workplace`

// Prompt builds the image edit instruction for an alert.
func Prompt(a alerts.Alert) string {
	return strings.NewReplacer(
		"{POLICY_NAME}", a.PolicyTitle,
		"{DESCRIPTION}", a.Explanation,
		"{REASONING}", a.Reasoning,
		"{FIX}", a.Fix,
	).Replace(promptTemplate)
}
