package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yuit/yuit-site/internal/model"
)

// contactResponse はお問い合わせAPIのレスポンス。
type contactResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeContactResult は{ok, message}形式のレスポンスを書き込む。
func writeContactResult(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, contactResponse{
		OK:      status == http.StatusOK,
		Message: message,
	})
}

// MethodNotAllowed は405 {ok:false, message}を返す。
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeContactResult(w, http.StatusMethodNotAllowed, model.MsgMethodNotAllowed)
}

// NotFound は404 {error, items:[]}を返す。
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, model.EmptyFeedResult("Not Found"))
}

// Health は稼働確認用の固定レスポンスを返す。
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
