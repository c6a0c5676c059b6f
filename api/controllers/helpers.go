package controllers

import (
	"net/http"
	"strconv"

	"github.com/alopez/store-backend/api/middleware"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func requireUserID(r *http.Request) (int64, error) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return userID, nil
}
