package config

import (
	"fmt"
	"time"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

const defaultSensitivePaths = "/api/auth/login,/api/auth/register,/api/payment/checkout"

// Tabelas de políticas embutidas, selecionadas por APP_ENV. O burst guard
// mantém janela curta nos dois ambientes: ele detecta rajada, não volume.

func productionPolicySet() domain.PolicySet {
	return domain.PolicySet{
		Policies: map[domain.Category]domain.LimitPolicy{
			domain.CategoryGlobal: {
				Window:  time.Minute,
				Max:     1000,
				Message: "too many requests, slow down",
			},
			domain.CategoryIP: {
				Window:  time.Minute,
				Max:     100,
				Message: "too many requests from this address",
			},
			domain.CategoryUser: {
				Window:  time.Minute,
				Max:     200,
				Message: "too many requests for this account",
			},
			domain.CategoryAuth: {
				Window:  15 * time.Minute,
				Max:     5,
				Message: "too many authentication attempts, try again later",
			},
			domain.CategoryPayment: {
				Window:        time.Hour,
				Max:           10,
				Message:       "too many payment attempts, try again later",
				SkipOnFailure: true,
			},
			domain.CategorySensitive: {
				Window:  time.Minute,
				Max:     10,
				Message: "too many requests to this resource",
			},
			domain.CategoryEndpoint: {
				Window:  time.Minute,
				Max:     30,
				Message: "too many requests to this endpoint",
			},
			domain.CategoryBurst: {
				Window:  time.Second,
				Max:     5,
				Message: "request burst detected, slow down",
			},
			domain.CategoryDynamic: {
				Window:  time.Minute,
				Max:     100,
				Message: "too many requests from this address",
			},
		},
		Overrides: map[string]domain.LimitPolicy{
			"/api/auth/login": {
				Window:  15 * time.Minute,
				Max:     5,
				Message: "too many login attempts, try again later",
			},
			"/api/auth/register": {
				Window:  time.Hour,
				Max:     3,
				Message: "too many accounts created from this address",
			},
			"/api/payment/checkout": {
				Window:        time.Hour,
				Max:           10,
				Message:       "too many payment attempts, try again later",
				SkipOnFailure: true,
			},
			"/api/calls/schedule": {
				Window:  time.Minute,
				Max:     10,
				Message: "too many call requests, slow down",
			},
		},
	}
}

func localPolicySet() domain.PolicySet {
	return domain.PolicySet{
		Policies: map[domain.Category]domain.LimitPolicy{
			domain.CategoryGlobal: {
				Window:  time.Minute,
				Max:     10000,
				Message: "too many requests, slow down",
			},
			domain.CategoryIP: {
				Window:  time.Minute,
				Max:     1000,
				Message: "too many requests from this address",
			},
			domain.CategoryUser: {
				Window:  time.Minute,
				Max:     2000,
				Message: "too many requests for this account",
			},
			domain.CategoryAuth: {
				Window:  time.Minute,
				Max:     50,
				Message: "too many authentication attempts, try again later",
			},
			domain.CategoryPayment: {
				Window:        time.Minute,
				Max:           100,
				Message:       "too many payment attempts, try again later",
				SkipOnFailure: true,
			},
			domain.CategorySensitive: {
				Window:  time.Minute,
				Max:     100,
				Message: "too many requests to this resource",
			},
			domain.CategoryEndpoint: {
				Window:  time.Minute,
				Max:     300,
				Message: "too many requests to this endpoint",
			},
			domain.CategoryBurst: {
				Window:  time.Second,
				Max:     20,
				Message: "request burst detected, slow down",
			},
			domain.CategoryDynamic: {
				Window:  time.Minute,
				Max:     1000,
				Message: "too many requests from this address",
			},
		},
		Overrides: map[string]domain.LimitPolicy{
			"/api/auth/login": {
				Window:  time.Minute,
				Max:     50,
				Message: "too many login attempts, try again later",
			},
		},
	}
}

// PolicySetForEnv seleciona a tabela embutida do ambiente.
func PolicySetForEnv(env string) (domain.PolicySet, error) {
	switch env {
	case EnvProduction:
		return productionPolicySet(), nil
	case EnvLocal:
		return localPolicySet(), nil
	default:
		return domain.PolicySet{}, fmt.Errorf("unsupported environment: %s", env)
	}
}
