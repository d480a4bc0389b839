package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

var exportHeader = []string{
	"ID", "Request Number", "Customer Name", "Customer Email", "Category", "Description",
	"Status", "Priority", "Vendors Contacted", "Responses Received", "Created At", "Updated At",
}

// ExportResult locates a written CSV snapshot.
type ExportResult struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

// ExportCSV writes every request matching f to the export store. An empty result
// writes nothing and returns nil.
func (s *RequestService) ExportCSV(ctx context.Context, f store.RequestFilter, dst utils.ObjectStore) (*ExportResult, error) {
	rows, err := collect(func(f store.RequestFilter, p store.Page) ([]models.ProductRequest, int64, error) {
		return s.deps.Store.Requests().List(ctx, f, p)
	}, f)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	body, err := encodeRequestsCSV(rows)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("exports/product-requests-%s.csv", s.deps.Now().Format("2006-01-02-150405"))
	loc, err := dst.Put(ctx, key, "text/csv", body)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	s.deps.Logger.InfoContext(ctx, "product requests exported", "rows", len(rows), "location", loc, "store", dst.Name())
	return &ExportResult{Location: loc, Rows: len(rows)}, nil
}

func encodeRequestsCSV(rows []models.ProductRequest) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.ID, 10),
			r.RequestNumber,
			r.CustomerName,
			r.CustomerEmail,
			r.Category,
			r.Description,
			string(r.Status),
			string(r.Priority),
			strconv.Itoa(r.VendorsContacted),
			strconv.Itoa(r.ResponsesReceived),
			r.CreatedAt.Format(time.DateTime),
			r.UpdatedAt.Format(time.DateTime),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
