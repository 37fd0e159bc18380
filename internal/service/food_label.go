package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/telemetry"
)

const (
	extractSystemPrompt = `Extrae datos nutricionales de la TABLA NUTRICIONAL de la imagen.
IGNORA slogans, recetas y publicidad. Localiza SOLO la tabla de información nutricional.
Devuelve EXACTAMENTE este JSON (valores numéricos sin unidades):
{
  "name": "Nombre del producto",
  "portion": "descripción de porción (ej: 1 pieza, 30g)",
  "calories": 0,
  "baseAmount": 0,
  "unit": "g",
  "p": 0,
  "c": 0,
  "f": 0,
  "fiber": 0
}`

	analyzeSystemPromptFmt = `Eres un Auditor de Calidad Alimentaria. Analiza imágenes de etiquetas o comida.
Contexto Usuario: Atleta %s, Estrategia %s, Objetivo %s, Condiciones %s. Responde en español.`

	labelFolder = "labels"
)

// extractedFood is the JSON the model returns for a nutrition table.
// Some models nest the macros, others return them flat.
type extractedFood struct {
	Name       string             `json:"name"`
	Portion    string             `json:"portion"`
	Calories   float64            `json:"calories"`
	BaseAmount float64            `json:"baseAmount"`
	Unit       string             `json:"unit"`
	P          float64            `json:"p"`
	C          float64            `json:"c"`
	F          float64            `json:"f"`
	Fiber      float64            `json:"fiber"`
	Macros     *domain.FoodMacros `json:"macros"`
}

// AnalyzeRequest holds the photos of one product, or of two products to compare
type AnalyzeRequest struct {
	ImagesA [][]byte
	ImagesB [][]byte
	Prompt  string
}

// FoodLabelService reads nutrition labels from photos
type FoodLabelService struct {
	transport domain.LLMTransport
	fileRepo  domain.FileRepository // optional
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewFoodLabelService creates a new label service. fileRepo may be nil.
func NewFoodLabelService(transport domain.LLMTransport, fileRepo domain.FileRepository, metrics *telemetry.Metrics) *FoodLabelService {
	return &FoodLabelService{
		transport: transport,
		fileRepo:  fileRepo,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ExtractFood turns label photos into a custom food of the given group.
// The returned food is not saved to the user's catalog.
func (s *FoodLabelService) ExtractFood(ctx context.Context, snapshot *domain.AppState, images [][]byte, group string) (*domain.FoodItem, string, error) {
	if !domain.IsKnownGroup(group) {
		return nil, "", domain.ErrUnknownGroup
	}
	if len(images) == 0 {
		return nil, "", fmt.Errorf("at least one image is required")
	}

	imageURL := s.storeLabel(ctx, snapshot.UserID, images[0])

	query := "Extrae SOLO los datos de la tabla nutricional en formato JSON."
	if p := snapshot.Profile; p.Name != "" {
		query += fmt.Sprintf(" Atleta %s, Estrategia %s", p.Name, strings.Join(p.Strategy, " + "))
	}

	raw, err := s.transport.Complete(ctx, extractSystemPrompt, query, images)
	if err != nil {
		return nil, imageURL, fmt.Errorf("label extraction failed: %w", err)
	}

	extracted, err := parseExtractedFood(raw)
	if err != nil {
		return nil, imageURL, fmt.Errorf("%w: %v", domain.ErrNoFoodDetected, err)
	}
	if strings.TrimSpace(extracted.Name) == "" {
		return nil, imageURL, domain.ErrNoFoodDetected
	}

	food := extracted.toFoodItem(group, s.now())
	s.metrics.RecordFoodScanned(ctx, group)
	return food, imageURL, nil
}

// AnalyzeLabel returns a free-text audit of one product or a comparison of two
func (s *FoodLabelService) AnalyzeLabel(ctx context.Context, snapshot *domain.AppState, req AnalyzeRequest) (string, error) {
	if len(req.ImagesA) == 0 {
		return "", fmt.Errorf("at least one image is required")
	}

	p := snapshot.Profile
	systemPrompt := fmt.Sprintf(analyzeSystemPromptFmt,
		p.Name,
		joinOr(p.Strategy, "ninguna"),
		p.Goal,
		joinOr(p.MedicalConditions, "ninguna"),
	)

	prompt := req.Prompt
	images := req.ImagesA
	if len(req.ImagesB) > 0 {
		images = append(append([][]byte{}, req.ImagesA...), req.ImagesB...)
		if prompt == "" {
			prompt = fmt.Sprintf("Compara estos dos productos. Las primeras %d imágenes son Producto A y las siguientes %d son Producto B. Indica cuál es más saludable y por qué.",
				len(req.ImagesA), len(req.ImagesB))
		}
	} else if prompt == "" {
		prompt = "Analiza este producto costarricense."
		if len(req.ImagesA) > 1 {
			prompt += fmt.Sprintf(" Tienes %d ángulos del mismo producto (frente, tabla nutricional, ingredientes, etc). Extrae todos los datos posibles.", len(req.ImagesA))
		}
	}

	text, err := s.transport.Complete(ctx, systemPrompt, prompt, images)
	if err != nil {
		log.Printf("Warning: label analysis failed for user %s: %v", snapshot.UserID, err)
		return FallbackMessage, nil
	}
	return strings.TrimSpace(text), nil
}

// storeLabel uploads the label photo; failures only lose the archive copy
func (s *FoodLabelService) storeLabel(ctx context.Context, userID string, image []byte) string {
	if s.fileRepo == nil {
		return ""
	}
	contentType := detectImageType(image)
	ext := strings.TrimPrefix(contentType, "image/")
	filename := fmt.Sprintf("%s/%s/%d.%s", labelFolder, userID, s.now().UnixMilli(), ext)

	url, err := s.fileRepo.Upload(ctx, image, filename, contentType)
	if err != nil {
		log.Printf("Warning: failed to store label image for user %s: %v", userID, err)
		return ""
	}
	return url
}

// parseExtractedFood accepts bare JSON, fenced JSON or JSON inside prose
func parseExtractedFood(text string) (*extractedFood, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	var food extractedFood
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &food); err == nil {
		return &food, nil
	}

	start := bytes.IndexByte([]byte(text), '{')
	end := bytes.LastIndexByte([]byte(text), '}')
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no JSON object found in text")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &food); err != nil {
		return nil, err
	}
	return &food, nil
}

func (e *extractedFood) toFoodItem(group string, createdAt time.Time) *domain.FoodItem {
	macros := domain.FoodMacros{P: e.P, C: e.C, F: e.F, Fiber: e.Fiber}
	if e.Macros != nil {
		macros = *e.Macros
	}
	baseAmount := e.BaseAmount
	if baseAmount <= 0 {
		baseAmount = 100
	}
	unit := strings.TrimSpace(e.Unit)
	if unit == "" {
		unit = "g"
	}
	return &domain.FoodItem{
		ID:         domain.CustomFoodID(createdAt),
		Name:       strings.TrimSpace(e.Name),
		Portion:    domain.CustomPortion(baseAmount, unit, group),
		Calories:   e.Calories,
		BaseAmount: baseAmount,
		Unit:       unit,
		Macros:     macros,
		IsCustom:   true,
		Group:      group,
	}
}
