package coordinator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/proozl/internal/models"
)

var (
	// ErrUnsupportedInvocation is returned for payloads that are neither a change
	// notification nor a direct query.
	ErrUnsupportedInvocation = errors.New("unsupported invocation")
	// ErrMalformedSignal is returned for change records missing their key fields.
	ErrMalformedSignal = errors.New("malformed change signal")
)

// Invocation is one of ChangeSignal, ChangeBatch, AnalysisQuery or ResultQuery.
type Invocation interface {
	invocation()
}

// ChangeSignal reports that the result record for Key was inserted or modified.
type ChangeSignal struct {
	Key  models.CacheKey
	Kind models.ChangeKind
}

// ChangeBatch carries the signals decoded from one change notification. Skipped holds
// one ErrMalformedSignal-wrapping error per record that could not be decoded.
type ChangeBatch struct {
	Signals []ChangeSignal
	Skipped []error
}

// AnalysisQuery asks for the stored ranking of Key.
type AnalysisQuery struct {
	Key models.CacheKey
}

// ResultQuery asks for the cached documents of Key, fetching them on a miss.
type ResultQuery struct {
	Key        models.CacheKey
	MaxResults int
}

func (ChangeSignal) invocation()  {}
func (ChangeBatch) invocation()   {}
func (AnalysisQuery) invocation() {}
func (ResultQuery) invocation()   {}

// attributeValue is a typed store attribute: strings under "S", numbers as decimal
// strings under "N".
type attributeValue struct {
	S *string `json:"S"`
	N *string `json:"N"`
}

type changeRecord struct {
	EventName string `json:"eventName"`
	Dynamodb  *struct {
		NewImage map[string]attributeValue `json:"NewImage"`
		Keys     map[string]attributeValue `json:"Keys"`
	} `json:"dynamodb"`
}

type rawInvocation struct {
	Records    *[]changeRecord `json:"Records"`
	Query      *string         `json:"query"`
	Start      json.RawMessage `json:"start"`
	MaxResults json.RawMessage `json:"max_results"`
	Analysis   bool            `json:"analysis"`
}

// ParseInvocation resolves a raw event into its Invocation. Change notifications become a
// ChangeBatch; objects with a "query" become a ResultQuery, or an AnalysisQuery when
// "analysis" is true.
func ParseInvocation(raw []byte) (Invocation, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var in rawInvocation
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedInvocation, err)
	}

	switch {
	case in.Records != nil:
		return parseChangeBatch(*in.Records), nil
	case in.Query != nil:
		return parseDirectQuery(in)
	default:
		return nil, fmt.Errorf("%w: expected Records or query", ErrUnsupportedInvocation)
	}
}

func parseChangeBatch(records []changeRecord) ChangeBatch {
	batch := ChangeBatch{Signals: make([]ChangeSignal, 0, len(records))}
	for i, rec := range records {
		sig, err := parseChangeRecord(rec)
		if err != nil {
			batch.Skipped = append(batch.Skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		batch.Signals = append(batch.Signals, sig)
	}
	return batch
}

func parseChangeRecord(rec changeRecord) (ChangeSignal, error) {
	var kind models.ChangeKind
	switch rec.EventName {
	case "INSERT":
		kind = models.ChangeInsert
	case "MODIFY", "UPDATE":
		kind = models.ChangeModify
	default:
		return ChangeSignal{}, fmt.Errorf("%w: event %q", ErrMalformedSignal, rec.EventName)
	}
	if rec.Dynamodb == nil {
		return ChangeSignal{}, fmt.Errorf("%w: no dynamodb section", ErrMalformedSignal)
	}

	image := rec.Dynamodb.NewImage
	if image == nil {
		image = rec.Dynamodb.Keys
	}
	q, ok := image["query_string"]
	if !ok || q.S == nil {
		return ChangeSignal{}, fmt.Errorf("%w: missing query_string", ErrMalformedSignal)
	}
	start := 0
	if p, ok := image["page_start"]; ok {
		if p.N == nil {
			return ChangeSignal{}, fmt.Errorf("%w: page_start is not numeric", ErrMalformedSignal)
		}
		n, err := models.ParseIntegral(*p.N)
		if err != nil {
			return ChangeSignal{}, fmt.Errorf("%w: page_start: %v", ErrMalformedSignal, err)
		}
		start = n
	}

	key, err := models.NewCacheKey(*q.S, start)
	if err != nil {
		return ChangeSignal{}, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}
	return ChangeSignal{Key: key, Kind: kind}, nil
}

func parseDirectQuery(in rawInvocation) (Invocation, error) {
	start, err := optionalInt(in.Start, "start")
	if err != nil {
		return nil, err
	}
	key, err := models.NewCacheKey(*in.Query, start)
	if err != nil {
		return nil, err
	}
	if in.Analysis {
		return AnalysisQuery{Key: key}, nil
	}
	maxResults, err := optionalInt(in.MaxResults, "max_results")
	if err != nil {
		return nil, err
	}
	return ResultQuery{Key: key, MaxResults: maxResults}, nil
}

// optionalInt accepts a JSON number or a numeric string; absent or null is zero.
func optionalInt(raw json.RawMessage, field string) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", models.ErrInvalidKey, field, err)
	}
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = t
	default:
		return 0, fmt.Errorf("%w: %s must be a number", models.ErrInvalidKey, field)
	}
	n, err := models.ParseIntegral(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", models.ErrInvalidKey, field, err)
	}
	return n, nil
}
