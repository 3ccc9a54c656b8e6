package notification

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hotel-inventory-engine/internal/application/ports"
	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

var messageNamespace = uuid.MustParse("6f1c9a52-3d7e-4b8a-9c41-2e5d7f0a8b13")

// batch tareas que salen en una sola llamada al transporte.
type batch struct {
	tasks []*entity.NotificationTask
}

// plan agrupa las tareas vencidas: por destinatario, en ventanas de fanIn según CreatedAt.
// Con transporte multi-destinatario, los grupos con el mismo contenido se envían juntos.
func plan(tasks []*entity.NotificationTask, fanIn time.Duration, multiRecipient bool) []*batch {
	byRecipient := make(map[string][]*entity.NotificationTask)
	var order []string
	for _, t := range tasks {
		k := t.TenantID + "/" + t.Recipient.ID
		if _, ok := byRecipient[k]; !ok {
			order = append(order, k)
		}
		byRecipient[k] = append(byRecipient[k], t)
	}

	var out []*batch
	for _, k := range order {
		group := byRecipient[k]
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })
		var cur *batch
		for _, t := range group {
			if cur == nil || t.CreatedAt.Sub(cur.tasks[0].CreatedAt) > fanIn {
				cur = &batch{}
				out = append(out, cur)
			}
			cur.tasks = append(cur.tasks, t)
		}
	}
	for _, b := range out {
		sortTasks(b.tasks)
	}
	if !multiRecipient {
		return out
	}
	return merge(out)
}

// holdOpenWindows retiene las tareas nuevas de cada destinatario mientras siga abierta la
// ventana de fanIn que abrió la más antigua. Los reintentos no esperan.
func holdOpenWindows(tasks []*entity.NotificationTask, now time.Time, fanIn time.Duration) ([]*entity.NotificationTask, int) {
	opened := make(map[string]time.Time)
	for _, t := range tasks {
		if t.Attempts > 0 {
			continue
		}
		k := t.TenantID + "/" + t.Recipient.ID
		if o, ok := opened[k]; !ok || t.CreatedAt.Before(o) {
			opened[k] = t.CreatedAt
		}
	}
	var ready []*entity.NotificationTask
	held := 0
	for _, t := range tasks {
		if t.Attempts == 0 && now.Before(opened[t.TenantID+"/"+t.Recipient.ID].Add(fanIn)) {
			held++
			continue
		}
		ready = append(ready, t)
	}
	return ready, held
}

// sortTasks por creación; a igual instante INITIAL antes que ESCALATION.
func sortTasks(ts []*entity.NotificationTask) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].Stage.Rank() < ts[j].Stage.Rank()
	})
}

func contentKey(b *batch) string {
	parts := make([]string, len(b.tasks))
	for i, t := range b.tasks {
		parts[i] = fmt.Sprintf("%s/%s/%s/%s", t.TenantID, t.AlertID, t.Stage, t.Day)
	}
	return strings.Join(parts, "|")
}

func merge(in []*batch) []*batch {
	index := make(map[string]*batch)
	var out []*batch
	for _, b := range in {
		k := contentKey(b)
		if m, ok := index[k]; ok {
			m.tasks = append(m.tasks, b.tasks...)
			continue
		}
		index[k] = b
		out = append(out, b)
	}
	return out
}

// message arma la llamada. La clave de idempotencia se deriva de las claves de las tareas.
func (b *batch) message() ports.Message {
	keys := make([]string, len(b.tasks))
	var recipients []entity.Recipient
	seenRecipient := make(map[string]bool)
	for i, t := range b.tasks {
		keys[i] = t.Key
		if !seenRecipient[t.Recipient.ID] {
			seenRecipient[t.Recipient.ID] = true
			recipients = append(recipients, t.Recipient)
		}
	}
	sort.Strings(keys)
	msg := ports.Message{
		Recipients:     recipients,
		IdempotencyKey: uuid.NewSHA1(messageNamespace, []byte(strings.Join(keys, "\n"))).String(),
	}

	// cuerpos únicos: con varios destinatarios cada alerta/etapa aparece una vez
	seen := make(map[string]bool)
	var bodies []*entity.NotificationTask
	for _, t := range b.tasks {
		k := t.AlertID + "/" + string(t.Stage) + "/" + t.Day
		if seen[k] {
			continue
		}
		seen[k] = true
		bodies = append(bodies, t)
	}
	if len(bodies) == 1 {
		msg.Subject = bodies[0].Subject
		msg.Body = bodies[0].Body
		return msg
	}
	msg.Subject = fmt.Sprintf("Resumen de alertas de inventario (%d)", len(bodies))
	var sb strings.Builder
	for i, t := range bodies {
		if i > 0 {
			sb.WriteString("\n\n----\n\n")
		}
		sb.WriteString(t.Subject)
		sb.WriteString("\n\n")
		sb.WriteString(t.Body)
	}
	msg.Body = sb.String()
	return msg
}
