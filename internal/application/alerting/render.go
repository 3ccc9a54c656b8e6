package alerting

import (
	"fmt"
	"strings"

	"github.com/jhoicas/hotel-inventory-engine/internal/domain/entity"
)

func templateName(stage entity.NotificationStage) string {
	return "alert." + strings.ToLower(string(stage))
}

// render arma asunto y cuerpo de la notificación.
func render(item *entity.Item, a *entity.Alert, stage entity.NotificationStage) (string, string) {
	var subject string
	switch stage {
	case entity.StageEscalation:
		subject = fmt.Sprintf("[CRÍTICO] %s sigue bajando: %s unidades", item.Name, a.ObservedOnHand)
	case entity.StageSupplier:
		subject = fmt.Sprintf("Solicitud de reposición: %s", item.Name)
	default:
		subject = fmt.Sprintf("[%s] Reposición de %s", a.Priority, item.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Artículo: %s (%s)\n", item.Name, item.ItemID)
	fmt.Fprintf(&b, "Saldo observado: %s %s\n", a.ObservedOnHand, item.UnitMeasure)
	fmt.Fprintf(&b, "Punto de reorden: %s\n", a.ReorderPoint)
	fmt.Fprintf(&b, "Cantidad sugerida: %s\n", a.SuggestedQuantity)
	if stage == entity.StageSupplier {
		fmt.Fprintf(&b, "Entrega requerida: %s\n", a.ExpectedDeliveryDate.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "Prioridad: %s (urgencia %d)\n", a.Priority, a.UrgencyScore)
		fmt.Fprintf(&b, "Costo estimado: %s\n", a.EstimatedCost.StringFixed(2))
	}
	fmt.Fprintf(&b, "Alerta: %s\n", a.AlertID)
	return subject, b.String()
}
