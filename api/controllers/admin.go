package controllers

import (
	"net/http"

	"github.com/alopez/store-backend/api/responses"
)

func AdminHello() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, "Hello Admin!")
	}
}
