package user

import (
	"github.com/Kyz7/microblog/internal/auth"
	"github.com/Kyz7/microblog/internal/models"
	"github.com/Kyz7/microblog/internal/pagination"
	"github.com/Kyz7/microblog/internal/response"
	"github.com/Kyz7/microblog/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc      *Service
	validate *validation.Validator
	maxLimit int
}

func NewHandler(svc *Service, validate *validation.Validator, maxLimit int) *Handler {
	return &Handler{svc: svc, validate: validate, maxLimit: maxLimit}
}

func (h *Handler) paginate(c *fiber.Ctx, q pagination.Query[string, models.User]) error {
	p, err := pagination.ParseParams(c.Query("limit"), c.Query("offset"), c.Query("after"), pagination.StringCursor)
	if err != nil {
		return response.FromError(c, err)
	}

	page, err := pagination.Paginate(c.UserContext(), q, p, h.maxLimit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Paginated(c, page, "")
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username" validate:"required,min=3,max=64,username"`
		Email    string `json:"email" validate:"required,email,max=120"`
		Password string `json:"password" validate:"required"`
		AboutMe  string `json:"about_me" validate:"max=140"`
	}
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	u, err := h.svc.Register(c.UserContext(), RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		AboutMe:  body.AboutMe,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, u, "Registration successful")
}

func (h *Handler) List(c *fiber.Ctx) error {
	return h.paginate(c, h.svc.List(c.UserContext()))
}

func (h *Handler) Get(c *fiber.Ctx) error {
	u, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, u, "")
}

func (h *Handler) Me(c *fiber.Ctx) error {
	return response.Success(c, auth.CurrentUser(c), "")
}

func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var body struct {
		Username    *string `json:"username" validate:"omitempty,min=3,max=64,username"`
		Email       *string `json:"email" validate:"omitempty,email,max=120"`
		AboutMe     *string `json:"about_me" validate:"omitempty,max=140"`
		Password    *string `json:"password" validate:"omitempty,min=1"`
		OldPassword *string `json:"old_password"`
	}
	if err := h.validate.ParseBody(c, &body); err != nil {
		return response.FromError(c, err)
	}

	u, err := h.svc.Update(c.UserContext(), auth.CurrentUser(c), UpdateInput{
		Username:    body.Username,
		Email:       body.Email,
		AboutMe:     body.AboutMe,
		Password:    body.Password,
		OldPassword: body.OldPassword,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, u, "Profile updated successfully")
}

func (h *Handler) MyFollowing(c *fiber.Ctx) error {
	return h.paginate(c, h.svc.Following(c.UserContext(), auth.CurrentUser(c).ID))
}

func (h *Handler) MyFollowers(c *fiber.Ctx) error {
	return h.paginate(c, h.svc.Followers(c.UserContext(), auth.CurrentUser(c).ID))
}

func (h *Handler) Following(c *fiber.Ctx) error {
	u, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return h.paginate(c, h.svc.Following(c.UserContext(), u.ID))
}

func (h *Handler) Followers(c *fiber.Ctx) error {
	u, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return h.paginate(c, h.svc.Followers(c.UserContext(), u.ID))
}

// IsFollowing answers 204 when the current user follows :id and 404
// otherwise.
func (h *Handler) IsFollowing(c *fiber.Ctx) error {
	target, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}

	following, err := h.svc.IsFollowing(c.UserContext(), auth.CurrentUser(c).ID, target.ID)
	if err != nil {
		return response.FromError(c, err)
	}
	if !following {
		return response.NotFound(c, "Follow")
	}
	return response.NoContent(c)
}

func (h *Handler) Follow(c *fiber.Ctx) error {
	if err := h.svc.Follow(c.UserContext(), auth.CurrentUser(c), c.Params("id")); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

func (h *Handler) Unfollow(c *fiber.Ctx) error {
	if err := h.svc.Unfollow(c.UserContext(), auth.CurrentUser(c), c.Params("id")); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
