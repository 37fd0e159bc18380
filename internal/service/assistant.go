package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/telemetry"
	"github.com/oklog/ulid/v2"
)

// FallbackMessage is shown when the model cannot be reached
const FallbackMessage = "Lo siento, hubo un error en la conexión con mi núcleo de IA en la nube. Por favor, verifica tu conexión e intenta más tarde."

const consultPromptTmplStr = `Eres NutriTico Agent IA v2 - Nutricionista Deportivo Tico. Experto en nutrición deportiva y salud metabólica en Costa Rica.
REGLAS DE ORO:
1. Responde en español usando jerga nutricional tica pero profesional.
2. Si el usuario pide un plan o ajustes, responde con texto motivador Y un bloque de comandos.
3. Si la estrategia es Keto, NUNCA incluyas Harinas. Prioriza Grasas y Proteinas.
4. Indica cantidades en PORCIONES numéricas exactas (ej: 2 porciones). Usa qty 0 para quitar un alimento.
5. FORMATO OBLIGATORIO DE COMANDO (incluye al FINAL de tu respuesta si hay cambios al plan):
[PLAN_UPDATE: [{"dayIndex":0,"meal":"Desayuno","group":"Proteinas","itemId":"p1","qty":2},{"dayIndex":0,"meal":"Desayuno","group":"Grasas","itemId":"g1","qty":1}]]
dayIndex: 0=Lunes ... 6=Domingo.

CATÁLOGO COMPLETO (usa estos IDs exactos):
{{range .Catalog}}- {{.Group}}: {{range $i, $f := .Items}}{{if $i}}, {{end}}{{$f.ID}}={{$f.Name}}{{end}}
{{end}}
ESTADO DEL ATLETA:
- Nombre: {{.Profile.Name}}
- Peso: {{.Profile.Weight}}kg | Estatura: {{.Profile.Height}}cm | Edad: {{.Profile.Age}}
- Objetivo: {{.Profile.Goal}}
- Estrategia dietética: {{.Strategy}}
- Condiciones médicas: {{.Conditions}}
- Intensidad entrenamiento: {{.Intensity}}
- METAS DIARIAS: {{.Targets.Calories}} kcal | Proteína:{{.Targets.Protein}}g | Carbs:{{.Targets.Carbs}}g | Grasa:{{.Targets.Fat}}g
- COMIDAS DEL DÍA (usa estos nombres EXACTOS en meal): {{.Meals}}`

type catalogGroup struct {
	Group string
	Items []domain.FoodItem
}

type consultPromptContext struct {
	Catalog    []catalogGroup
	Profile    domain.UserProfile
	Strategy   string
	Conditions string
	Intensity  domain.TrainingIntensity
	Targets    domain.MacroTargets
	Meals      string
}

// AssistantGateway turns a user query and a state snapshot into an assistant response
type AssistantGateway struct {
	transport  domain.LLMTransport
	metrics    *telemetry.Metrics
	promptTmpl *template.Template
	now        func() time.Time
}

// NewAssistantGateway creates a new assistant gateway
func NewAssistantGateway(transport domain.LLMTransport, metrics *telemetry.Metrics) *AssistantGateway {
	return &AssistantGateway{
		transport:  transport,
		metrics:    metrics,
		promptTmpl: template.Must(template.New("consult").Parse(consultPromptTmplStr)),
		now:        time.Now,
	}
}

// SystemPrompt renders the consult instructions for a snapshot
func (g *AssistantGateway) SystemPrompt(snapshot *domain.AppState) (string, error) {
	catalog := snapshot.Catalog()
	promptCtx := consultPromptContext{
		Profile:    snapshot.Profile,
		Strategy:   joinOr(snapshot.Profile.Strategy, "ninguna específica"),
		Conditions: joinOr(snapshot.Profile.MedicalConditions, "ninguna"),
		Intensity:  snapshot.TrainingIntensity,
		Targets:    snapshot.CalculatedTargets,
		Meals:      strings.Join(snapshot.ActiveMeals, ", "),
	}
	for _, group := range domain.FoodGroups {
		promptCtx.Catalog = append(promptCtx.Catalog, catalogGroup{Group: group, Items: catalog.Items(group)})
	}

	var buf bytes.Buffer
	if err := g.promptTmpl.Execute(&buf, promptCtx); err != nil {
		return "", fmt.Errorf("failed to generate system prompt: %w", err)
	}
	return buf.String(), nil
}

// Consult asks the model about query. A transport failure is not an error:
// the response carries the fallback message and Degraded is set.
func (g *AssistantGateway) Consult(ctx context.Context, snapshot *domain.AppState, query string) (*domain.AssistantResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	systemPrompt, err := g.SystemPrompt(snapshot)
	if err != nil {
		return nil, err
	}

	now := g.now()
	resp := &domain.AssistantResponse{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Commands:  []domain.PlanCommand{},
		CreatedAt: now,
	}

	raw, err := g.transport.Complete(ctx, systemPrompt, query, nil)
	if err != nil {
		log.Printf("Warning: assistant transport failed for user %s: %v", snapshot.UserID, err)
		resp.Text = FallbackMessage
		resp.Degraded = true
		g.metrics.RecordConsult(ctx, true, 0, 0)
		return resp, nil
	}

	extraction := ExtractPlanCommands(raw)
	resp.Text = extraction.CleanText
	resp.ActionSummary = extraction.ActionSummary
	if len(extraction.Commands) > 0 {
		resp.Commands = extraction.Commands
	}
	g.metrics.RecordConsult(ctx, false, len(extraction.Commands), extraction.Dropped)
	return resp, nil
}

func joinOr(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}
