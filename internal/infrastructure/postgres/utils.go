package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Códigos SQLSTATE relevantes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// isInvalidText id con formato inválido (p.ej. no es UUID): se trata como no encontrado.
func isInvalidText(err error) bool { return pgCode(err) == codeInvalidText }

// storeError clasifica el error: violaciones de constraint son permanentes, el resto reintentable.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	switch pgCode(err) {
	case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation, codeInvalidText:
		return &domain.StoreError{Op: op, Err: err, Permanent: true}
	}
	return &domain.StoreError{Op: op, Err: err}
}
