// Package batch turns an uploaded spreadsheet into the ordered records a
// dispatch call consumes. Records keep their column order: the model prompt
// embeds the record verbatim and reordered fields change the output.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Field struct {
	Key   string
	Value string
}

// Record is one input row as an ordered list of named fields. It serializes
// to a plain JSON object; field order is preserved on both marshal and
// unmarshal, which encoding/json maps cannot do.
type Record []Field

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: non-string key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		var val string
		switch v := valTok.(type) {
		case string:
			val = v
		case json.Number:
			val = v.String()
		case bool:
			val = fmt.Sprintf("%t", v)
		case nil:
			val = ""
		default:
			return fmt.Errorf("record: field %q has non-scalar value", key)
		}
		out = append(out, Field{Key: key, Value: val})
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*r = out
	return nil
}

// Encode renders the record to its canonical at-rest form.
func (r Record) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(s string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
