package notification

import (
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/models"
)

// VisitOutcomeEmail builds the subject and body for the email sent to the
// requesting manager when a visit finalizes.
func VisitOutcomeEmail(visit *models.Visit) (subject, body string) {
	switch visit.Status {
	case models.VisitAprobado:
		subject = fmt.Sprintf("Visita a %s aprobada", visit.ClientName)
	case models.VisitRechazado:
		subject = fmt.Sprintf("Visita a %s rechazada", visit.ClientName)
	default:
		subject = fmt.Sprintf("Visita a %s actualizada", visit.ClientName)
	}

	body = fmt.Sprintf(`<p>Estimado gestor,</p>
<p>Su solicitud de visita ha sido <strong>%s</strong>.</p>
<ul>
  <li>Cliente: %s</li>
  <li>Ciudad: %s</li>
  <li>Salida: %s</li>
  <li>Regreso: %s</li>
</ul>
<p>Sistema de Gestión de Visitas</p>`,
		visit.Status,
		visit.ClientName,
		visit.City,
		visit.Departure.Format("2006-01-02 15:04"),
		visit.Return.Format("2006-01-02 15:04"),
	)
	return subject, body
}

// PendingTasksEmail builds the broadcast sent to purchasing and supply staff
// once the vice-presidency approves a visit with dependent approval roles.
func PendingTasksEmail(visit *models.Visit) (subject, body string) {
	subject = fmt.Sprintf("Aprobaciones pendientes - visita a %s", visit.ClientName)
	body = fmt.Sprintf(`<p>Buen día,</p>
<p>La vicepresidencia aprobó la visita a <strong>%s</strong> en %s.
Quedan aprobaciones de tiquetes y transporte pendientes de su gestión.</p>
<p>Sistema de Gestión de Visitas</p>`,
		visit.ClientName,
		visit.City,
	)
	return subject, body
}
