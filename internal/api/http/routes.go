package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/airsense/indoor-comfort/internal/chat"
	"github.com/airsense/indoor-comfort/internal/common"
	"github.com/airsense/indoor-comfort/internal/recommend"
	"github.com/airsense/indoor-comfort/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. All mutating
// and query operations use POST bodies for uniformity; only /health is a GET.
func RegisterRoutes(app *fiber.App, st *store.Store, recSvc *recommend.Service, chatSvc *chat.Service) {
	api := app.Group("/api")

	registerUserRoutes(api, st)
	registerRoomRoutes(api, st)
	registerTelemetryRoutes(api, st)
	registerRecommendationRoutes(api, recSvc)
	registerChatRoutes(api, chatSvc)
}

// mapError translates the service error taxonomy onto HTTP statuses.
func mapError(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func registerUserRoutes(api fiber.Router, st *store.Store) {
	users := api.Group("/users")

	users.Post("/create", func(c *fiber.Ctx) error {
		var req struct {
			Name          string `json:"name" validate:"required"`
			Email         string `json:"email" validate:"required,email"`
			Age           int    `json:"age"`
			Gender        string `json:"gender"`
			Ethnicity     string `json:"ethnicity"`
			HealthIssues  []any  `json:"health_issues"`
			Questionnaire []any  `json:"questionnaire"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		u := store.User{
			Name:          req.Name,
			Email:         req.Email,
			Age:           req.Age,
			Gender:        req.Gender,
			Ethnicity:     req.Ethnicity,
			HealthIssues:  req.HealthIssues,
			Questionnaire: req.Questionnaire,
		}
		if err := st.CreateUser(c.Context(), &u); err != nil {
			return mapError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": u})
	})

	users.Post("/get", func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email" validate:"required,email"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		u, err := st.GetUserByEmail(c.Context(), req.Email)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "user": u})
	})

	users.Post("/delete", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		if err := st.SoftDeleteUser(c.Context(), req.ID); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "user soft deleted"})
	})
}

func registerRoomRoutes(api fiber.Router, st *store.Store) {
	rooms := api.Group("/room")

	rooms.Post("/create", func(c *fiber.Ctx) error {
		var req struct {
			UserID     string  `json:"userId" validate:"required"`
			Name       string  `json:"room_name" validate:"required"`
			Length     float64 `json:"room_length" validate:"required,gt=0"`
			Width      float64 `json:"room_width" validate:"required,gt=0"`
			Height     float64 `json:"room_height" validate:"required,gt=0"`
			Occupancy  int     `json:"occupancy" validate:"required,gte=1"`
			Devices    []any   `json:"devices"`
			Appliances []any   `json:"appliances"`
			Doors      int     `json:"doors"`
			Windows    int     `json:"windows"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		r := store.Room{
			UserID:     req.UserID,
			Name:       req.Name,
			Length:     req.Length,
			Width:      req.Width,
			Height:     req.Height,
			Occupancy:  req.Occupancy,
			Devices:    req.Devices,
			Appliances: req.Appliances,
			Doors:      req.Doors,
			Windows:    req.Windows,
		}
		if r.Doors == 0 {
			r.Doors = 1
		}
		if r.Windows == 0 {
			r.Windows = 1
		}
		if err := st.CreateRoom(c.Context(), &r); err != nil {
			return mapError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "room": r})
	})

	rooms.Post("/get", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		r, err := st.GetRoom(c.Context(), req.ID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "room": r})
	})

	rooms.Post("/delete", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		if err := st.SoftDeleteRoom(c.Context(), req.ID); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "room soft deleted"})
	})
}

type pageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func registerTelemetryRoutes(api fiber.Router, st *store.Store) {
	api.Post("/node/list", func(c *fiber.Ctx) error {
		var req struct {
			DeviceKey string `json:"selectedDevice"`
			pageRequest
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		readings, total, err := st.ListNodeReadings(c.Context(), req.DeviceKey, req.Page, req.Limit)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"success": true, "total": total,
			"page": max(req.Page, 1), "limit": defaultLimit(req.Limit),
			"readings": readings,
		})
	})

	api.Post("/outdoor/list", func(c *fiber.Ctx) error {
		var req pageRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		readings, total, err := st.ListOutdoorReadings(c.Context(), req.Page, req.Limit)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"success": true, "total": total,
			"page": max(req.Page, 1), "limit": defaultLimit(req.Limit),
			"readings": readings,
		})
	})
}

func registerRecommendationRoutes(api fiber.Router, svc *recommend.Service) {
	rec := api.Group("/recommendation")

	rec.Post("/latest", func(c *fiber.Ctx) error {
		var req struct {
			UserID    string `json:"userId" validate:"required"`
			RoomID    string `json:"roomId" validate:"required"`
			DeviceKey string `json:"selectedDevice"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		result, err := svc.GetLatest(c.Context(), req.UserID, req.RoomID, req.DeviceKey)
		if err != nil {
			return mapError(err)
		}

		resp := fiber.Map{
			"success":        true,
			"source":         result.Source,
			"recommendation": result.Recommendation,
			"recheckMinutes": result.RecheckMinutes,
		}
		if result.Warning != "" {
			resp["warning"] = result.Warning
		}
		return c.JSON(resp)
	})

	rec.Post("/stored", func(c *fiber.Ctx) error {
		var req struct {
			RoomID string `json:"roomId"`
			UserID string `json:"userId"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		latest, err := svc.LatestStored(c.Context(), req.RoomID, req.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(fiber.Map{"success": true, "latest": nil, "message": "no recommendation found"})
			}
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "latest": latest})
	})

	rec.Post("/list", func(c *fiber.Ctx) error {
		var req struct {
			RoomID string `json:"roomId"`
			UserID string `json:"userId"`
			pageRequest
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		recs, total, err := svc.List(c.Context(), req.RoomID, req.UserID, req.Page, req.Limit)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"success": true, "total": total,
			"page": max(req.Page, 1), "limit": defaultLimit(req.Limit),
			"recommendations": recs,
		})
	})

	rec.Post("/delete", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		if err := svc.SoftDelete(c.Context(), req.ID); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "recommendation soft deleted"})
	})
}

func registerChatRoutes(api fiber.Router, svc *chat.Service) {
	ch := api.Group("/chat")

	ch.Post("/agent", func(c *fiber.Ctx) error {
		var req struct {
			UserID         string `json:"userId" validate:"required"`
			RoomID         string `json:"roomId"`
			Message        string `json:"message" validate:"required"`
			ConversationID string `json:"conversationId"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		result, err := svc.AppendExchange(c.Context(), req.UserID, req.RoomID, req.Message, req.ConversationID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "result": result.Exchange, "chatId": result.ChatID})
	})

	ch.Post("/message", func(c *fiber.Ctx) error {
		var req struct {
			UserID         string `json:"userId" validate:"required"`
			RoomID         string `json:"roomId"`
			ConversationID string `json:"conversationId"`
			MessageObj     struct {
				Sender  string `json:"sender" validate:"required"`
				Message string `json:"message" validate:"required"`
			} `json:"messageObj" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		conv, err := svc.AppendRawMessage(c.Context(), req.UserID, req.RoomID,
			req.MessageObj.Sender, req.MessageObj.Message, req.ConversationID)
		if err != nil {
			return mapError(err)
		}

		msg := "new conversation created"
		if req.ConversationID != "" {
			msg = "message added to conversation"
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg, "chat": conv})
	})

	ch.Post("/list", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"userId" validate:"required"`
			RoomID string `json:"roomId"`
			pageRequest
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		convs, total, err := svc.ListThreads(c.Context(), req.UserID, req.RoomID, req.Page, req.Limit)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"success": true, "total": total,
			"page": max(req.Page, 1), "limit": defaultLimit(req.Limit),
			"conversations": convs,
		})
	})

	ch.Post("/delete", func(c *fiber.Ctx) error {
		var req struct {
			ID string `json:"id" validate:"required"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		conv, err := svc.SoftDelete(c.Context(), req.ID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "conversation soft deleted", "chat": conv})
	})
}

func defaultLimit(limit int) int {
	if limit < 1 {
		return 10
	}
	return limit
}
