package domain

import "fmt"

// Category identifica o bucket de política ao qual uma checagem pertence.
// Cada categoria mantém seu próprio espaço de chaves de contadores,
// independente das demais.
type Category int

const (
	CategoryGlobal Category = iota
	CategoryIP
	CategoryUser
	CategoryAuth
	CategoryPayment
	CategorySensitive
	CategoryEndpoint
	CategoryBurst
	CategoryDynamic
)

var categoryNames = map[Category]string{
	CategoryGlobal:    "global",
	CategoryIP:        "ip",
	CategoryUser:      "user",
	CategoryAuth:      "auth",
	CategoryPayment:   "payment",
	CategorySensitive: "sensitive",
	CategoryEndpoint:  "endpoint",
	CategoryBurst:     "burst",
	CategoryDynamic:   "dynamic",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory converte o nome textual (ex: vindo de query string) na categoria.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category: %q", name)
}

// Categories retorna todas as categorias conhecidas, em ordem estável.
func Categories() []Category {
	return []Category{
		CategoryGlobal,
		CategoryIP,
		CategoryUser,
		CategoryAuth,
		CategoryPayment,
		CategorySensitive,
		CategoryEndpoint,
		CategoryBurst,
		CategoryDynamic,
	}
}
