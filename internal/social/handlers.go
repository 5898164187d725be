package social

import (
	"strconv"

	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/post"

	"github.com/gofiber/fiber/v2"
)

var ErrInvalidUserID = fiber.NewError(fiber.StatusBadRequest, "user id must be a positive integer")

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Patch("/user/:userId/follow", authMiddleware, func(c *fiber.Ctx) error {
		me, target, err := meAndTarget(c)
		if err != nil {
			return err
		}
		follow, err := svc.Follow(c.Context(), me, target)
		if err != nil {
			return err
		}
		return c.JSON(follow)
	})

	r.Delete("/user/:userId/follow", authMiddleware, func(c *fiber.Ctx) error {
		me, target, err := meAndTarget(c)
		if err != nil {
			return err
		}
		follow, err := svc.Unfollow(c.Context(), me, target)
		if err != nil {
			return err
		}
		return c.JSON(follow)
	})

	r.Get("/user/:userId/followers", func(c *fiber.Ctx) error {
		userID, err := userIDParam(c)
		if err != nil {
			return err
		}
		users, err := svc.Followers(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(users)
	})

	r.Get("/user/:userId/followings", func(c *fiber.Ctx) error {
		userID, err := userIDParam(c)
		if err != nil {
			return err
		}
		users, err := svc.Followings(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(users)
	})

	r.Get("/feed", authMiddleware, func(c *fiber.Ctx) error {
		me, err := auth.RequireUserID(c)
		if err != nil {
			return err
		}
		posts, err := svc.Feed(c.Context(), me, post.PageFromQuery(c))
		if err != nil {
			return err
		}
		return c.JSON(posts)
	})
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return id, nil
}

func meAndTarget(c *fiber.Ctx) (int64, int64, error) {
	me, err := auth.RequireUserID(c)
	if err != nil {
		return 0, 0, err
	}
	target, err := userIDParam(c)
	if err != nil {
		return 0, 0, err
	}
	return me, target, nil
}
