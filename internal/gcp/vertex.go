package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Analysis Model Prompts ---
const AnalysisSystemPrompt = "You are a wildfire damage analyst reviewing before/after aerial imagery of residential areas. You will be shown a comparison image in which surviving structures are outlined in green and destroyed structures are outlined in red."
const AnalysisUserPrompt = `Analyze the attached comparison image of a fire-affected residential area.

Describe the overall extent of the damage, the spatial pattern of destroyed versus surviving structures, and any visible factors that may explain why particular structures survived (defensible space, separation from vegetation, roofing, proximity to other burned structures). Count the outlined structures and state how many survived and how many were destroyed.

Write your analysis as clear markdown prose with short sections. Do not include any preamble.`

// --- Routing Model Prompts ---
const RoutingSystemPrompt = "You are an insurance property adjuster reviewing post-fire aerial imagery. You respond with strict JSON only."
const RoutingUserPrompt = `For each visible home in the attached image, determine whether there is a 5-foot inclusion zone around the home where no fire encroachment is present. Return STRICT JSON only using this schema:
{"summary": {"total_homes": int, "auto_approved_count": int, "needs_human_review_count": int}, "homes": [{"house_id": string, "decision": "auto_approved"|"needs_human_review", "has_5ft_inclusion_zone": true|false|null, "confidence": number, "reason": string, "bbox": {"x_min": number, "y_min": number, "x_max": number, "y_max": number}}]}
Use bbox coordinates normalized from 0.0 to 1.0 and aligned to the referenced home. Use needs_human_review whenever confidence is low, occlusion exists, or 5-foot clearance cannot be confirmed. Keep each reason concise (<= 12 words). Return JSON only, no markdown, no commentary.`

// VertexClient holds the pre-configured generative models for the pipeline.
type VertexClient struct {
	// AnalysisModel produces the free-form damage analysis for reports.
	AnalysisModel *genai.GenerativeModel
	// RoutingModel produces the strict-JSON per-structure routing decisions.
	RoutingModel *genai.GenerativeModel
	baseClient   *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	analysisModel := baseClient.GenerativeModel(modelName)
	analysisModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalysisSystemPrompt)},
	}

	routingModel := baseClient.GenerativeModel(modelName)
	routingModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(RoutingSystemPrompt)},
	}
	routingModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. Low temperature keeps the schema stable.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		AnalysisModel: analysisModel,
		RoutingModel:  routingModel,
		baseClient:    baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
