package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFileRepo struct {
	names []string
	types []string
	err   error
}

func (m *memFileRepo) Upload(ctx context.Context, file []byte, filename, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.names = append(m.names, filename)
	m.types = append(m.types, contentType)
	return "https://labels.example.com/" + filename, nil
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestFoodLabelService_ExtractFood(t *testing.T) {
	fixed := time.UnixMilli(1767600000000)

	tests := []struct {
		name       string
		reply      string
		group      string
		wantErr    error
		wantName   string
		wantMacros domain.FoodMacros
		wantBase   float64
	}{
		{
			name:       "flat json",
			reply:      `{"name":"Yogurt Griego","portion":"1 vaso","calories":100,"baseAmount":170,"unit":"g","p":17,"c":6,"f":0,"fiber":0}`,
			group:      domain.GroupProteinas,
			wantName:   "Yogurt Griego",
			wantMacros: domain.FoodMacros{P: 17, C: 6},
			wantBase:   170,
		},
		{
			name:       "fenced nested macros, default amount",
			reply:      "Aquí está:\n```json\n{\"name\":\"Barra de avena\",\"calories\":190,\"macros\":{\"p\":4,\"c\":29,\"f\":7,\"fiber\":3}}\n```",
			group:      domain.GroupHarinas,
			wantName:   "Barra de avena",
			wantMacros: domain.FoodMacros{P: 4, C: 29, F: 7, Fiber: 3},
			wantBase:   100,
		},
		{
			name:    "no table",
			reply:   "No veo ninguna tabla nutricional en la foto.",
			group:   domain.GroupGrasas,
			wantErr: domain.ErrNoFoodDetected,
		},
		{
			name:    "empty name",
			reply:   `{"name":"  ","calories":10}`,
			group:   domain.GroupGrasas,
			wantErr: domain.ErrNoFoodDetected,
		},
		{
			name:    "unknown group",
			reply:   `{"name":"x"}`,
			group:   "Dulces",
			wantErr: domain.ErrUnknownGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &memFileRepo{}
			svc := NewFoodLabelService(&fakeTransport{reply: tt.reply}, files, nil)
			svc.now = func() time.Time { return fixed }

			food, _, err := svc.ExtractFood(context.Background(), testState(), [][]byte{pngHeader}, tt.group)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, food.Name)
			assert.Equal(t, tt.wantMacros, food.Macros)
			assert.Equal(t, tt.wantBase, food.BaseAmount)
			assert.Equal(t, tt.group, food.Group)
			assert.Equal(t, "custom_1767600000000", food.ID)
			assert.True(t, food.BelongsTo(tt.group))
			assert.True(t, strings.HasSuffix(food.Portion, "("+tt.group+")"))
		})
	}
}

func TestFoodLabelService_StoresLabelImage(t *testing.T) {
	files := &memFileRepo{}
	svc := NewFoodLabelService(&fakeTransport{reply: `{"name":"Natilla Light","calories":40}`}, files, nil)
	svc.now = func() time.Time { return time.UnixMilli(42) }

	_, url, err := svc.ExtractFood(context.Background(), testState(), [][]byte{pngHeader}, domain.GroupGrasas)
	require.NoError(t, err)
	assert.Equal(t, "https://labels.example.com/labels/user-1/42.png", url)
	assert.Equal(t, []string{"image/png"}, files.types)

	// Upload failures only lose the archive copy
	files.err = errors.New("bucket gone")
	food, url, err := svc.ExtractFood(context.Background(), testState(), [][]byte{pngHeader}, domain.GroupGrasas)
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Equal(t, "Natilla Light", food.Name)
}

func TestFoodLabelService_AnalyzeLabel(t *testing.T) {
	imgA := []byte("product-a-front")
	imgB := []byte("product-b-front")

	t.Run("single product", func(t *testing.T) {
		transport := &fakeTransport{reply: "  Producto aceptable.  "}
		svc := NewFoodLabelService(transport, nil, nil)

		text, err := svc.AnalyzeLabel(context.Background(), testState(), AnalyzeRequest{ImagesA: [][]byte{imgA}})
		require.NoError(t, err)
		assert.Equal(t, "Producto aceptable.", text)
		assert.Contains(t, transport.query, "Analiza este producto")
		assert.Contains(t, transport.system, "Auditor de Calidad")
	})

	t.Run("comparison sends both products", func(t *testing.T) {
		transport := &fakeTransport{reply: "B es mejor."}
		svc := NewFoodLabelService(transport, nil, nil)

		_, err := svc.AnalyzeLabel(context.Background(), testState(), AnalyzeRequest{
			ImagesA: [][]byte{imgA, imgA},
			ImagesB: [][]byte{imgB},
		})
		require.NoError(t, err)
		assert.Len(t, transport.images, 3)
		assert.Contains(t, transport.query, "Las primeras 2 imágenes son Producto A")
	})

	t.Run("transport failure returns fallback", func(t *testing.T) {
		svc := NewFoodLabelService(&fakeTransport{err: errors.New("503")}, nil, nil)

		text, err := svc.AnalyzeLabel(context.Background(), testState(), AnalyzeRequest{ImagesA: [][]byte{imgA}})
		require.NoError(t, err)
		assert.Equal(t, FallbackMessage, text)
	})

	t.Run("no images", func(t *testing.T) {
		svc := NewFoodLabelService(&fakeTransport{}, nil, nil)
		_, err := svc.AnalyzeLabel(context.Background(), testState(), AnalyzeRequest{})
		assert.Error(t, err)
	})
}
