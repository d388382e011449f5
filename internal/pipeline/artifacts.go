package pipeline

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/objstore"
)

// fetch downloads the file in a termsheet slot into dir, named after the
// role, and returns its local path and type.
func (p *Pipeline) fetch(ctx context.Context, id string, role model.FileRole, dir string) (string, model.FileType, error) {
	ref, err := p.store.GetFile(ctx, id, role)
	if err != nil {
		return "", "", eris.Wrapf(err, "pipeline: locate %s", role)
	}

	ft := ref.Type
	if ft == "" {
		ft = model.DetectFileType(urlPath(ref.URL))
	}
	dst := filepath.Join(dir, string(role)+extension(ref.URL, ft))

	n, err := objstore.DownloadToFile(ctx, p.objects, ref.URL, dst)
	if err != nil {
		return "", "", eris.Wrapf(err, "pipeline: download %s", role)
	}
	zap.L().Debug("pipeline: fetched file",
		zap.String("termsheet_id", id),
		zap.String("role", string(role)),
		zap.Int64("bytes", n),
	)
	return dst, ft, nil
}

// publish uploads a local artifact and points the termsheet slot at it.
func (p *Pipeline) publish(ctx context.Context, id string, role model.FileRole, localPath string, ft model.FileType) (string, error) {
	key := id + "/" + filepath.Base(localPath)
	loc, err := objstore.UploadFile(ctx, p.objects, key, localPath)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: upload %s", role)
	}
	fileID, err := p.store.AttachFile(ctx, id, role, loc, ft)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: attach %s", role)
	}
	zap.L().Info("pipeline: artifact persisted",
		zap.String("termsheet_id", id),
		zap.String("role", string(role)),
		zap.String("file_id", fileID),
		zap.String("url", loc),
	)
	return fileID, nil
}

func urlPath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

func extension(raw string, ft model.FileType) string {
	if ext := strings.ToLower(path.Ext(urlPath(raw))); ext != "" {
		return ext
	}
	switch ft {
	case model.FileTypePDF:
		return ".pdf"
	case model.FileTypeExcel:
		return ".xlsx"
	case model.FileTypeCSV:
		return ".csv"
	case model.FileTypeJSON:
		return ".json"
	case model.FileTypeWord:
		return ".docx"
	}
	return ""
}

// ReferenceData turns a validated sheet into the reference passed to the
// discrepancy prompt: the first row's non-empty cells under "fields" and every
// row under "raw_data".
func ReferenceData(t model.Table) map[string]any {
	fields := make(map[string]any)
	rows := make([]map[string]any, 0, len(t.Rows))
	for i, r := range t.Rows {
		rec := make(map[string]any, len(t.Header))
		for j, h := range t.Header {
			v := ""
			if j < len(r) {
				v = r[j]
			}
			rec[h] = v
			if i == 0 && strings.TrimSpace(v) != "" {
				fields[h] = v
			}
		}
		rows = append(rows, rec)
	}
	return map[string]any{"fields": fields, "raw_data": rows}
}
