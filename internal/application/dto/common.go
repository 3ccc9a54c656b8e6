package dto

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// PageRequest ventana de un listado: ?limit=&offset=.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// DefaultPage deja limit en [1, MaxPageLimit] y offset no negativo.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// ListResponse cuerpo de los listados. Total cuenta los elementos antes de recortar la página.
type ListResponse[T any] struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Items  []T `json:"items"`
}

// Page recorta all a la ventana pedida. Items nunca es nil.
func Page[T any](all []T, p PageRequest) ListResponse[T] {
	p.DefaultPage()
	from := min(p.Offset, len(all))
	to := min(from+p.Limit, len(all))
	items := make([]T, to-from)
	copy(items, all[from:to])
	return ListResponse[T]{Total: len(all), Limit: p.Limit, Offset: p.Offset, Items: items}
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
