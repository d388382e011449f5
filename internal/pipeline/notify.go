package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/notify"
	"github.com/sells-group/termsheet-cli/internal/store"
)

const notifyBody = "Please find the following attachments"

// deliverables are attached in this order when present.
var deliverables = []model.FileRole{
	model.RoleValidated,
	model.RoleColoured,
	model.RoleStructured,
}

// Notify emails the termsheet's artifacts to every member of its
// organisation and returns how many messages were delivered. Missing
// artifacts are left out; with no mailer or no members nothing is sent.
func (p *Pipeline) Notify(ctx context.Context, id, orgID, dir string) (int, error) {
	log := zap.L().With(zap.String("termsheet_id", id), zap.String("org_id", orgID))
	if p.mailer == nil {
		log.Debug("pipeline: email disabled")
		return 0, nil
	}

	members, err := p.store.ListRecipients(ctx, orgID)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list recipients")
	}
	if len(members) == 0 {
		log.Info("pipeline: no recipients")
		return 0, nil
	}
	to := make([]string, 0, len(members))
	for _, m := range members {
		to = append(to, m.Email)
	}

	var paths []string
	for _, role := range deliverables {
		path, _, err := p.fetch(ctx, id, role, dir)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		paths = append(paths, path)
	}
	attachments, err := notify.LoadAttachments(paths...)
	if err != nil {
		return 0, err
	}

	return notify.Broadcast(ctx, p.mailer, to, notify.Message{
		From:        p.cfg.Email.From,
		Subject:     p.cfg.Email.Subject,
		Body:        notifyBody,
		Attachments: attachments,
	})
}
