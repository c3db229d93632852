package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 promhttp 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handlers 路由注册需要的全部 Handler
type Handlers struct {
	Auth          *AuthHandler
	Sensor        *SensorHandler
	WS            *WSHandler
	Notifications *NotificationsHandler
	Predict       *PredictHandler
	History       *HistoryHandler
	Children      *ChildrenHandler
	Dosages       *DosagesHandler
}

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(h *Handlers) {
	// auth
	r.Handle("/register", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.Register(w, req)
	})
	r.Handle("/login", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.Login(w, req)
	})
	r.Handle("/logout", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.Logout(w, req)
	})

	// sensor ingest：同一路径同时承载 HTTP 上报和双工 WebSocket 上报
	r.Handle("/sensor/data", func(w http.ResponseWriter, req *http.Request) {
		if websocket.IsWebSocketUpgrade(req) {
			h.WS.SensorData(w, req)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.RequireAuth(h.Sensor.Ingest)(w, req)
	})

	// websocket
	r.Handle("/ws/predictions", h.WS.Predictions)
	r.Handle("/ws/sensor/data", h.WS.SensorData)

	// notifications
	r.Handle("/api/notifications", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.RequireAuth(h.Notifications.List)(w, req)
	})
	r.Handle("/api/notifications/", func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.URL.Path == "/api/notifications/dismiss-all":
			if req.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Auth.RequireAuth(h.Notifications.DismissAll)(w, req)
		case req.URL.Path == "/api/notifications/sms-delivery":
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Notifications.SMSDelivery(w, req)
		default:
			id, ok := notificationIDFromPath(req.URL.Path)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if req.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Auth.RequireAuth(func(w http.ResponseWriter, req *http.Request, claims *Claims) {
				h.Notifications.Dismiss(w, req, claims, id)
			})(w, req)
		}
	})

	// predictions and history
	r.Handle("/api/predict", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.RequireAuth(h.Predict.Latest)(w, req)
	})
	r.Handle("/api/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.RequireAuth(h.History.List)(w, req)
	})
	r.Handle("/api/history/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Auth.RequireAuth(h.History.Export)(w, req)
	})

	// children
	r.Handle("/api/children", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Auth.RequireAuth(h.Children.List)(w, req)
		case http.MethodPost:
			h.Auth.RequireAuth(h.Children.Create)(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/api/children/", func(w http.ResponseWriter, req *http.Request) {
		id, ok := idFromPath(req.URL.Path, "/api/children/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodPut:
			h.Auth.RequireAuth(func(w http.ResponseWriter, req *http.Request, claims *Claims) {
				h.Children.Update(w, req, claims, id)
			})(w, req)
		case http.MethodDelete:
			h.Auth.RequireAuth(func(w http.ResponseWriter, req *http.Request, claims *Claims) {
				h.Children.Delete(w, req, claims, id)
			})(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// dosages
	r.Handle("/api/dosages", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Auth.RequireAuth(h.Dosages.List)(w, req)
		case http.MethodPost:
			h.Auth.RequireAuth(h.Dosages.Create)(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/api/dosages/", func(w http.ResponseWriter, req *http.Request) {
		id, ok := idFromPath(req.URL.Path, "/api/dosages/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodPut:
			h.Auth.RequireAuth(func(w http.ResponseWriter, req *http.Request, claims *Claims) {
				h.Dosages.Update(w, req, claims, id)
			})(w, req)
		case http.MethodDelete:
			h.Auth.RequireAuth(func(w http.ResponseWriter, req *http.Request, claims *Claims) {
				h.Dosages.Delete(w, req, claims, id)
			})(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// observability
	r.HandleHandler("/metrics", promhttp.Handler())

	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
