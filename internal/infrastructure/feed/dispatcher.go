package feed

import (
	"bytes"
	"context"
	"errors"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DispatchResult is the outcome of decoding one payload
type DispatchResult struct {
	Records []Record
	// Format is the format actually used, which differs from the configured
	// one when the payload's shape says otherwise.
	Format supplier.FormatType
	// Rejected counts CSV rows dropped as malformed or inactive
	Rejected int
}

// Dispatcher picks a parser from the configured format and the payload's
// actual shape.
type Dispatcher struct {
	parsers []XMLParser
}

// NewDispatcher creates a dispatcher over the given XML parsers, or the
// default vendor set when none are passed.
func NewDispatcher(parsers ...XMLParser) *Dispatcher {
	if len(parsers) == 0 {
		parsers = DefaultXMLParsers()
	}
	return &Dispatcher{parsers: parsers}
}

// Detect returns the parser whose shape matches the document root
func (d *Dispatcher) Detect(root *Node) XMLParser {
	for _, p := range d.parsers {
		if p.Detect(root) {
			return p
		}
	}
	return nil
}

// Dispatch decodes payload into records. An XML payload whose root matches
// no known vendor yields zero records and a warning, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, sup supplier.Supplier, payload []byte) (*DispatchResult, error) {
	log := logger.L(ctx)

	body := bytes.TrimSpace(bytes.TrimPrefix(payload, utf8BOM))
	if len(body) == 0 {
		return &DispatchResult{Format: sup.Format}, nil
	}

	if body[0] == '<' {
		return d.dispatchXML(log, sup, body)
	}

	switch {
	case sup.Format == supplier.FormatCSV:
		res, err := ParseCSV(body, sup)
		if err != nil {
			return nil, &ingestion.ParseError{Kind: ingestion.ParseMalformed, Format: supplier.FormatCSV, Err: err}
		}
		if res.Errors.HasErrors() {
			log.Warn("CSV rows rejected",
				zap.Int("count", res.Errors.TotalCount()),
				zap.String("detail", res.Errors.String()),
			)
		}
		return &DispatchResult{
			Records:  res.Records,
			Format:   supplier.FormatCSV,
			Rejected: res.Errors.TotalCount() + res.Inactive,
		}, nil

	case sup.Format.IsXML():
		return nil, &ingestion.ParseError{
			Kind:   ingestion.ParseMalformed,
			Format: sup.Format,
			Err:    errors.New("payload is not XML"),
		}

	default:
		return nil, &ingestion.ParseError{Kind: ingestion.ParseUnsupportedFormat, Format: sup.Format}
	}
}

func (d *Dispatcher) dispatchXML(log *zap.Logger, sup supplier.Supplier, body []byte) (*DispatchResult, error) {
	root, err := ParseXML(body)
	if err != nil {
		return nil, &ingestion.ParseError{Kind: ingestion.ParseMalformed, Format: sup.Format, Err: err}
	}

	parser := d.Detect(root)
	if parser == nil {
		shapeErr := &ingestion.ParseError{Kind: ingestion.ParseUnknownShape, Format: sup.Format}
		log.Warn("Feed root not recognized, no records produced",
			zap.String("root", root.Name),
			zap.Error(shapeErr),
		)
		return &DispatchResult{Format: supplier.FormatUnknown}, nil
	}

	if parser.Format() != sup.Format {
		log.Warn("Feed format drift, using detected format",
			zap.String("configured", sup.Format.String()),
			zap.String("detected", parser.Format().String()),
			zap.String("root", root.Name),
		)
	}

	return &DispatchResult{
		Records: parser.Parse(root, sup),
		Format:  parser.Format(),
	}, nil
}
