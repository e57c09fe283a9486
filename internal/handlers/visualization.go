package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetStats returns aggregate counts and the most frequent top-1 labels.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.uc.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to aggregate statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportCSV streams the processed results as a CSV attachment.
func (h *Handler) ExportCSV(c *gin.Context) {
	records, err := h.ledger.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"filename", "top_prediction", "confidence", "all_predictions"})

	rows := 0
	for _, record := range records {
		if !record.Processed || len(record.Results) == 0 {
			continue
		}
		top := record.Results[0]
		all := make([]string, 0, len(record.Results))
		for _, prediction := range record.Results {
			all = append(all, fmt.Sprintf("%s (%v)", prediction.Label, prediction.Confidence))
		}
		_ = writer.Write([]string{
			record.Filename,
			top.Label,
			strconv.FormatFloat(top.Confidence, 'f', -1, 64),
			strings.Join(all, ", "),
		})
		rows++
	}
	writer.Flush()

	if rows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "no processed files to export"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=results.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

type reportRow struct {
	ID         int
	Filename   string
	Status     string
	Prediction string
	SizeBytes  int64
}

type reportData struct {
	Total       int
	Processed   int
	Unprocessed int
	Rows        []reportRow
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Cars Recognizer — Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #f5f5f5; }
        h1 { color: #333; }
        .stats { display: flex; gap: 20px; margin: 20px 0; }
        .stat-card { background: white; padding: 20px; border-radius: 8px;
                     box-shadow: 0 2px 4px rgba(0,0,0,0.1); min-width: 150px; }
        .stat-card h3 { margin: 0 0 8px; color: #666; font-size: 14px; }
        .stat-card .value { font-size: 32px; font-weight: bold; color: #2196F3; }
        table { width: 100%; border-collapse: collapse; background: white;
                border-radius: 8px; overflow: hidden;
                box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        th { background: #2196F3; color: white; padding: 12px; text-align: left; }
        td { padding: 10px 12px; border-bottom: 1px solid #eee; }
        tr:hover { background: #f0f7ff; }
    </style>
</head>
<body>
    <h1>Cars Recognizer — Report</h1>
    <div class="stats">
        <div class="stat-card">
            <h3>Total files</h3>
            <div class="value">{{.Total}}</div>
        </div>
        <div class="stat-card">
            <h3>Processed</h3>
            <div class="value">{{.Processed}}</div>
        </div>
        <div class="stat-card">
            <h3>Unprocessed</h3>
            <div class="value">{{.Unprocessed}}</div>
        </div>
    </div>
    <table>
        <thead>
            <tr>
                <th>ID</th>
                <th>File</th>
                <th>Status</th>
                <th>Prediction</th>
                <th>Size</th>
            </tr>
        </thead>
        <tbody>
            {{if .Rows}}{{range .Rows}}<tr>
                <td>{{.ID}}</td>
                <td>{{.Filename}}</td>
                <td>{{.Status}}</td>
                <td>{{.Prediction}}</td>
                <td>{{.SizeBytes}} B</td>
            </tr>
            {{end}}{{else}}<tr><td colspan="5" style="text-align:center;padding:20px;">No uploaded files</td></tr>{{end}}
        </tbody>
    </table>
</body>
</html>`))

// Report renders a simple HTML overview page.
func (h *Handler) Report(c *gin.Context) {
	records, err := h.ledger.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}

	data := reportData{Total: len(records)}
	for _, record := range records {
		status := "Unprocessed"
		prediction := "—"
		if record.Processed {
			status = "Processed"
			data.Processed++
		}
		if len(record.Results) > 0 {
			prediction = fmt.Sprintf("%s (%v)", record.Results[0].Label, record.Results[0].Confidence)
		}
		data.Rows = append(data.Rows, reportRow{
			ID:         record.ID,
			Filename:   record.Filename,
			Status:     status,
			Prediction: prediction,
			SizeBytes:  record.SizeBytes,
		})
	}
	data.Unprocessed = data.Total - data.Processed

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to render report"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
