package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type MessageText struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

// Render replaces {name} placeholders in title and body.
func (m MessageText) Render(vars map[string]string) MessageText {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return MessageText{Title: r.Replace(m.Title), Body: r.Replace(m.Body)}
}

type Messages struct {
	TransactionApproved MessageText `json:"transaction_approved" yaml:"transaction_approved"`
	TransactionRejected MessageText `json:"transaction_rejected" yaml:"transaction_rejected"`
	GmailConnected      MessageText `json:"gmail_connected" yaml:"gmail_connected"`
}

// Defaults are used for any message the file leaves empty.
func Defaults() Messages {
	return Messages{
		TransactionApproved: MessageText{
			Title: "Gasto registrado",
			Body:  "Se registró un gasto de {amount} {currency} en {place}.",
		},
		TransactionRejected: MessageText{
			Title: "No se pudo registrar el gasto",
			Body:  "No se pudo procesar la transacción: {reason}",
		},
		GmailConnected: MessageText{
			Title: "Gmail conectado",
			Body:  "Procesaremos tus notificaciones de consumo de {email}.",
		},
	}
}

var (
	loaded   *Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications file (YAML or JSON, by extension) and caches
// the result. An empty path yields the defaults.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		if path == "" {
			m := Defaults()
			loaded = &m
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		loaded, loadErr = Parse(data, filepath.Ext(path))
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return loaded, nil
}

// Parse decodes a messages document. ext selects the format: ".json" or
// ".yaml"/".yml".
func Parse(data []byte, ext string) (*Messages, error) {
	var m Messages
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported messages file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	d := Defaults()
	fill(&m.TransactionApproved, d.TransactionApproved)
	fill(&m.TransactionRejected, d.TransactionRejected)
	fill(&m.GmailConnected, d.GmailConnected)
	return &m, nil
}

func fill(m *MessageText, d MessageText) {
	if m.Title == "" {
		m.Title = d.Title
	}
	if m.Body == "" {
		m.Body = d.Body
	}
}
