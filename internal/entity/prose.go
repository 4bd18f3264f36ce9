package entity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/storage/artifact"
	"github.com/ecom-support/chatbot/pkg/logger"
)

const modelName = "supportbot-ner"

// Tagger is the trained span extractor consulted before the rule fallback.
type Tagger interface {
	Tag(text string) ([]Entity, error)
}

// ProseTagger tags PRODUCT and ORDER_ID spans with a prose NER model.
type ProseTagger struct {
	model *prose.Model
}

// LoadProseTagger reads a model directory written by TrainProseModel.
func LoadProseTagger(dir string) (tagger *ProseTagger, err error) {
	if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, artifact.ErrArtifactMissing)
	}

	// prose panics on unreadable model files.
	defer func() {
		if r := recover(); r != nil {
			tagger = nil
			err = fmt.Errorf("failed to load entity model %s: %v", dir, r)
		}
	}()

	model := prose.ModelFromDisk(dir)
	return &ProseTagger{model: model}, nil
}

func NewProseTagger(model *prose.Model) *ProseTagger {
	return &ProseTagger{model: model}
}

func (p *ProseTagger) Tag(text string) ([]Entity, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.UsingModel(p.model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to tag text: %w", err)
	}

	var entities []Entity
	for _, ent := range doc.Entities() {
		typ, ok := ParseType(ent.Label)
		if !ok {
			continue
		}
		entities = append(entities, Entity{Text: ent.Text, Type: typ})
	}
	return entities, nil
}

// TrainingExample is one sentence with its labeled spans given as
// substrings of Text.
type TrainingExample struct {
	Text  string   `json:"text"`
	Spans []Entity `json:"spans"`
}

// LoadExamples reads a JSON array of training examples.
func LoadExamples(path string) ([]TrainingExample, error) {
	var examples []TrainingExample
	if err := artifact.ReadJSON(path, &examples); err != nil {
		return nil, fmt.Errorf("failed to load entity examples: %w", err)
	}
	return examples, nil
}

// SeedExamples is the built-in training set for the NER model.
func SeedExamples() []TrainingExample {
	products := []string{"shoes", "jacket", "headphones", "backpack", "watch", "sneakers", "dress", "laptop bag"}
	orders := []string{"#12345", "#67890", "#4521", "#998877", "#30211", "#7765"}

	templates := []struct {
		text    string
		product bool
		order   bool
	}{
		{text: "Where is my order for {p}?", product: true},
		{text: "Track my order {o}", order: true},
		{text: "Cancel my order {o}", order: true},
		{text: "I want refund for {p}", product: true},
		{text: "I want to return the {p} from order {o}", product: true, order: true},
		{text: "Has order {o} with my {p} shipped yet?", product: true, order: true},
		{text: "Can I exchange my {p}?", product: true},
		{text: "What is the status of {o}", order: true},
	}

	var examples []TrainingExample
	for i, tpl := range templates {
		for j := 0; j < 3; j++ {
			p := products[(i+j)%len(products)]
			o := orders[(i*3+j)%len(orders)]
			text := strings.NewReplacer("{p}", p, "{o}", o).Replace(tpl.text)

			ex := TrainingExample{Text: text}
			if tpl.product {
				ex.Spans = append(ex.Spans, Entity{Text: p, Type: Product})
			}
			if tpl.order {
				ex.Spans = append(ex.Spans, Entity{Text: o, Type: OrderID})
			}
			examples = append(examples, ex)
		}
	}
	return examples
}

// TrainProseModel fits a prose NER model on examples and writes it to dir.
// The model is written to a sibling temp directory first and then moved into
// place.
func TrainProseModel(examples []TrainingExample, dir string) (*prose.Model, error) {
	contexts := make([]prose.EntityContext, 0, len(examples))
	for _, ex := range examples {
		ec := prose.EntityContext{Text: ex.Text, Accept: true}
		for _, span := range ex.Spans {
			start := strings.Index(ex.Text, span.Text)
			if start < 0 {
				return nil, fmt.Errorf("span %q not found in %q", span.Text, ex.Text)
			}
			ec.Spans = append(ec.Spans, prose.LabeledEntity{
				Start: start,
				End:   start + len(span.Text),
				Label: span.Type.String(),
			})
		}
		contexts = append(contexts, ec)
	}

	model := prose.ModelFromData(modelName, prose.UsingEntities(contexts))

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model dir: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".entity-model-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	staged := filepath.Join(staging, filepath.Base(dir))
	if err := model.Write(staged); err != nil {
		return nil, fmt.Errorf("failed to write entity model: %w", err)
	}

	if err := replaceDir(staged, dir); err != nil {
		return nil, err
	}

	logger.Info("Entity model trained", zap.String("path", dir), zap.Int("examples", len(examples)))
	return model, nil
}

func replaceDir(src, dst string) error {
	backup := dst + ".old"
	_ = os.RemoveAll(backup)

	if _, err := os.Stat(dst); err == nil {
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("failed to move previous model aside: %w", err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(backup, dst)
		return fmt.Errorf("failed to publish entity model: %w", err)
	}
	return os.RemoveAll(backup)
}
