package post

import (
	"time"

	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/Kyz7/microblog/internal/response"
	"github.com/Kyz7/microblog/internal/user"
	"github.com/Kyz7/microblog/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc      *Service
	users    *user.Service
	validate *validation.Validator
	maxLimit int
}

func NewHandler(svc *Service, users *user.Service, validate *validation.Validator, maxLimit int) *Handler {
	return &Handler{svc: svc, users: users, validate: validate, maxLimit: maxLimit}
}

type postBody struct {
	Body string `json:"body" validate:"required,max=280"`
}

func (h *Handler) paginate(c *fiber.Ctx, q pagination.Query[time.Time, models.Post]) error {
	p, err := pagination.ParseParams(c.Query("limit"), c.Query("offset"), c.Query("after"), pagination.TimeCursor)
	if err != nil {
		return response.FromError(c, err)
	}

	page, err := pagination.Paginate(c.UserContext(), q, p, h.maxLimit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, page, "")
}

func postID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var body postBody
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	p, err := h.svc.Create(c.UserContext(), auth.CurrentUser(c), body.Body)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, p, "Post created successfully")
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, ok := postID(c)
	if !ok {
		return response.NotFound(c, "Post")
	}

	p, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, p, "")
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, ok := postID(c)
	if !ok {
		return response.NotFound(c, "Post")
	}

	var body postBody
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	p, err := h.svc.Update(c.UserContext(), auth.CurrentUser(c), id, body.Body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, p, "Post updated successfully")
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, ok := postID(c)
	if !ok {
		return response.NotFound(c, "Post")
	}

	if err := h.svc.Delete(c.UserContext(), auth.CurrentUser(c), id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) All(c *fiber.Ctx) error {
	return h.paginate(c, h.svc.All(c.UserContext()))
}

func (h *Handler) UserPosts(c *fiber.Ctx) error {
	u, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return h.paginate(c, h.svc.ByUser(c.UserContext(), u.ID))
}

func (h *Handler) Feed(c *fiber.Ctx) error {
	return h.paginate(c, h.svc.Feed(c.UserContext(), auth.CurrentUser(c).ID))
}
