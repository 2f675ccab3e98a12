package classifier

import (
	"strings"

	"github.com/JaimeStill/safestack/internal/policies"
)

// PoliciesPlaceholder is replaced with the rendered policy document.
const PoliciesPlaceholder = "{POLICIES}"

const videoTemplate = `You are an expert workplace safety inspector analyzing video footage for OSHA safety violations.

Given the following OSHA safety policies:
---
{POLICIES}
---

Analyze the video carefully and identify ANY safety violations you observe. For each violation found, provide:
- timestamp: The time in the video where the violation occurs (MM:SS format)
- policy_name: The exact title of the violated policy as written above
- severity: The severity level exactly as shown in brackets in the policy (must be one of: "Severity 1", "Severity 2", or "Severity 3")
- description: What you observed in the video
- reasoning: Why this constitutes a violation of the specific policy
- fix: A specific, actionable instruction on how to fix this violation

IMPORTANT:
- Only report violations you can clearly see in the video
- If the SAME violation type occurs multiple times in the video, report ONLY the MOST SIGNIFICANT instance (the one that is most clearly visible, most severe, or poses the greatest risk)
- Each unique violation type should appear only once in your results, at its most significant timestamp
- The timestamp should be where the violation is MOST apparent, typically 1-2 seconds after it begins
- If no violations are found, return an empty array
- Return ONLY valid JSON, no additional text

Return your analysis as a JSON array of violations:
[
  {
    "timestamp": "00:15",
    "policy_name": "Poor Housekeeping",
    "severity": "Severity 1",
    "description": "Tools and materials scattered across walkway",
    "reasoning": "This creates slip, trip, and fall hazards",
    "fix": "Move the tools to the designated storage area and clear the walkway"
  }
]`

const frameTemplate = `You are an expert workplace safety inspector analyzing a frame from a live video feed.

Given the following OSHA safety policies:
---
{POLICIES}
---

Analyze this frame and identify ANY safety violations visible. For each violation found, provide:
- policy_name: The exact title of the violated policy as written above
- severity: The severity level exactly as shown in brackets in the policy (must be one of: "Severity 1", "Severity 2", or "Severity 3")
- description: What you observed in the frame
- reasoning: Why this constitutes a violation of the specific policy
- fix: A specific, actionable instruction on how to fix this violation

IMPORTANT:
- Only report violations you can clearly see in the frame
- If no violations are found, return an empty array
- Return ONLY valid JSON, no additional text

Return your analysis as a JSON array:
[
  {
    "policy_name": "Poor Housekeeping",
    "severity": "Severity 1",
    "description": "Tools and materials scattered across walkway",
    "reasoning": "This creates slip, trip, and fall hazards",
    "fix": "Move the tools to the designated storage area and clear the walkway"
  }
]`

// VideoPrompt renders the segment analysis prompt for doc.
func VideoPrompt(doc *policies.Document) string {
	return render(videoTemplate, doc)
}

// FramePrompt renders the single-frame analysis prompt for doc.
func FramePrompt(doc *policies.Document) string {
	return render(frameTemplate, doc)
}

func render(template string, doc *policies.Document) string {
	return strings.ReplaceAll(template, PoliciesPlaceholder, doc.Prompt())
}
