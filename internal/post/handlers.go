package post

import (
	"strconv"
	"strings"

	"github.com/bytrustu/sns/internal/auth"

	"github.com/gofiber/fiber/v2"
)

type HandlerOptions struct {
	// StrictDelete reports deletes of missing or foreign posts as 403 instead of 200.
	StrictDelete bool
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, opts HandlerOptions) {
	r.Post("/post", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := auth.RequireUserID(c)
		if err != nil {
			return err
		}
		req, err := parseCreatePost(c)
		if err != nil {
			return err
		}
		post, err := svc.CreatePost(c.Context(), userID, req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(post)
	})

	r.Post("/post/comment", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := auth.RequireUserID(c)
		if err != nil {
			return err
		}
		var req CreateCommentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.PostID <= 0 {
			return ErrInvalidPostID
		}
		comment, err := svc.AddComment(c.Context(), userID, req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	r.Get("/post/:postId", func(c *fiber.Ctx) error {
		postID, err := postIDParam(c)
		if err != nil {
			return err
		}
		post, err := svc.GetPost(c.Context(), postID)
		if err != nil {
			return err
		}
		return c.JSON(post)
	})

	r.Patch("/post/:postId/like", authMiddleware, func(c *fiber.Ctx) error {
		postID, userID, err := postAndUser(c)
		if err != nil {
			return err
		}
		result, err := svc.LikePost(c.Context(), postID, userID)
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	r.Delete("/post/:postId/like", authMiddleware, func(c *fiber.Ctx) error {
		postID, userID, err := postAndUser(c)
		if err != nil {
			return err
		}
		result, err := svc.UnlikePost(c.Context(), postID, userID)
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	r.Delete("/post/:postId", authMiddleware, func(c *fiber.Ctx) error {
		postID, userID, err := postAndUser(c)
		if err != nil {
			return err
		}
		outcome, err := svc.DeletePost(c.Context(), postID, userID)
		if err != nil {
			return err
		}
		if outcome == NotFoundOrForbidden && opts.StrictDelete {
			return ErrPostNotDeleted
		}
		return c.JSON(fiber.Map{"PostId": postID})
	})

	r.Post("/post/:postId/retweet", authMiddleware, func(c *fiber.Ctx) error {
		postID, userID, err := postAndUser(c)
		if err != nil {
			return err
		}
		retweet, err := svc.RetweetPost(c.Context(), postID, userID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(retweet)
	})

	r.Get("/posts", func(c *fiber.Ctx) error {
		posts, err := svc.ListPosts(c.Context(), PageFromQuery(c))
		if err != nil {
			return err
		}
		return c.JSON(posts)
	})

	r.Get("/hashtag/:tag", func(c *fiber.Ctx) error {
		posts, err := svc.PostsByHashtag(c.Context(), c.Params("tag"), PageFromQuery(c))
		if err != nil {
			return err
		}
		return c.JSON(posts)
	})
}

// parseCreatePost accepts JSON as well as url-encoded or multipart forms, where
// image may repeat.
func parseCreatePost(c *fiber.Ctx) (CreatePostRequest, error) {
	var req CreatePostRequest
	if c.Is("json") {
		if err := c.BodyParser(&req); err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return req, nil
	}

	req.Content = c.FormValue("content")
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.Image = form.Value["image"]
		return req, nil
	}
	for _, v := range c.Request().PostArgs().PeekMulti("image") {
		req.Image = append(req.Image, string(v))
	}
	return req, nil
}

func postIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("postId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPostID
	}
	return id, nil
}

func postAndUser(c *fiber.Ctx) (int64, int64, error) {
	userID, err := auth.RequireUserID(c)
	if err != nil {
		return 0, 0, err
	}
	postID, err := postIDParam(c)
	if err != nil {
		return 0, 0, err
	}
	return postID, userID, nil
}

// PageFromQuery reads lastId and limit from the query string.
func PageFromQuery(c *fiber.Ctx) Page {
	lastID, _ := strconv.ParseInt(c.Query("lastId"), 10, 64)
	limit, _ := strconv.ParseUint(c.Query("limit"), 10, 64)
	return Page{LastID: lastID, Limit: limit}
}
