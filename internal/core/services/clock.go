package services

import "time"

// systemClock é o relógio padrão quando nenhum é injetado.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
