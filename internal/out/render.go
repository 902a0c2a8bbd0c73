package out

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

const (
	ModeJSON  = "json"
	ModePlain = "plain"
)

// Plain is implemented by results that have a line-oriented human form.
type Plain interface {
	PlainLines() []string
}

func Render(w io.Writer, env model.Envelope, mode string) error {
	if mode == ModeJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if env.Error != nil {
		_, err := fmt.Fprintf(w, "ERROR: %s\n", env.Error.Message)
		return err
	}
	return renderPlain(w, env.Data)
}

// Success wraps data in a successful envelope.
func Success(command string, data any) model.Envelope {
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Command: command,
		Data:    data,
	}
}

// Failure converts err into an error envelope carrying its code and type.
func Failure(command string, err error) model.Envelope {
	code := clierr.CodeOf(err)
	message := err.Error()
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Command: command,
		Error: &model.ErrorBody{
			Code:    int(code),
			Type:    code.Type(),
			Message: message,
		},
	}
}

func renderPlain(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		return nil
	case Plain:
		for _, line := range t.PlainLines() {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	case string:
		_, err := fmt.Fprintln(w, t)
		return err
	}

	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			line, err := toLine(normalizeValue(v.Index(i).Interface()))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if v.Len() == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		return nil
	default:
		line, err := toLine(normalizeValue(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(v any) (string, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, t[k]))
		}
		return strings.Join(parts, " "), nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
}
