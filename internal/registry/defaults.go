package registry

// DefaultModuleID is loaded at startup when nothing else is configured.
const DefaultModuleID = "modulo1"

var defaultModules = []ModuleDescriptor{
	{ID: "modulo1", Name: "Introdução", Category: CategoryPrimary},
	{ID: "modulo2", Name: "Fundamentos", Category: CategoryPrimary},
	{ID: "modulo3", Name: "Reatividade", Category: CategoryPrimary},
	{ID: "modulo4", Name: "Componentes", Category: CategoryPrimary},
	{ID: "modulo5", Name: "Roteamento", Category: CategoryPrimary},
	{ID: "modulo6", Name: "Gerenciamento de Estado", Category: CategoryPrimary},
	{ID: "modulo7", Name: "Composition API", Category: CategoryPrimary},
	{ID: "modulo8", Name: "Testes e Depuração", Category: CategoryPrimary},
	{ID: "cronograma_estudos", Name: "Cronograma de Estudos", Category: CategorySupplementary},
	{ID: "exercicios_praticos", Name: "Exercícios Práticos", Category: CategorySupplementary},
	{ID: "requisitos_certificacao", Name: "Requisitos de Certificação", Category: CategorySupplementary},
}

// Default returns the built-in course.
func Default() *Registry {
	return MustNew(defaultModules...)
}
