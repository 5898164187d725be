package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/post"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// Error is a non-2xx response decoded from the server's {code,message} body.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// File is one image for UploadImages.
type File struct {
	Name    string
	Content []byte
}

// Client calls the social feed HTTP API. It holds the bearer token of the logged-in user.
type Client struct {
	baseURL string
	timeout time.Duration

	mu     sync.RWMutex
	tokens auth.TokenResponse
}

func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: defaultTimeout}
}

func (c *Client) SetTokens(tokens auth.TokenResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *Client) Tokens() auth.TokenResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

type session struct {
	User   auth.User          `json:"user"`
	Tokens auth.TokenResponse `json:"tokens"`
}

func (c *Client) Signup(req auth.SignupRequest) (auth.User, error) {
	var out session
	if err := c.do(fiber.Post(c.url("/user/signup")).JSON(req), &out); err != nil {
		return auth.User{}, err
	}
	c.SetTokens(out.Tokens)
	return out.User, nil
}

func (c *Client) Login(req auth.LoginRequest) (auth.User, error) {
	var out session
	if err := c.do(fiber.Post(c.url("/user/login")).JSON(req), &out); err != nil {
		return auth.User{}, err
	}
	c.SetTokens(out.Tokens)
	return out.User, nil
}

// Logout revokes the refresh token and forgets both tokens.
func (c *Client) Logout() error {
	body := auth.RefreshRequest{RefreshToken: c.Tokens().RefreshToken}
	if err := c.do(fiber.Post(c.url("/user/logout")).JSON(body), nil); err != nil {
		return err
	}
	c.SetTokens(auth.TokenResponse{})
	return nil
}

func (c *Client) AddPost(req post.CreatePostRequest) (post.Post, error) {
	var out post.Post
	err := c.do(c.authed(fiber.Post(c.url("/post"))).JSON(req), &out)
	return out, err
}

func (c *Client) RemovePost(postID int64) (int64, error) {
	var out struct {
		PostID int64 `json:"PostId"`
	}
	err := c.do(c.authed(fiber.Delete(c.url("/post/"+id(postID)))), &out)
	return out.PostID, err
}

func (c *Client) AddComment(req post.CreateCommentRequest) (post.Comment, error) {
	var out post.Comment
	err := c.do(c.authed(fiber.Post(c.url("/post/comment"))).JSON(req), &out)
	return out, err
}

func (c *Client) Like(postID int64) (post.LikeResult, error) {
	var out post.LikeResult
	err := c.do(c.authed(fiber.Patch(c.url("/post/"+id(postID)+"/like"))), &out)
	return out, err
}

func (c *Client) Unlike(postID int64) (post.LikeResult, error) {
	var out post.LikeResult
	err := c.do(c.authed(fiber.Delete(c.url("/post/"+id(postID)+"/like"))), &out)
	return out, err
}

func (c *Client) Retweet(postID int64) (post.Post, error) {
	var out post.Post
	err := c.do(c.authed(fiber.Post(c.url("/post/"+id(postID)+"/retweet"))), &out)
	return out, err
}

func (c *Client) LoadPosts(page post.Page) ([]post.Post, error) {
	q := url.Values{}
	if page.LastID > 0 {
		q.Set("lastId", id(page.LastID))
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.FormatUint(page.Limit, 10))
	}
	var out []post.Post
	err := c.do(fiber.Get(c.url("/posts")).QueryString(q.Encode()), &out)
	return out, err
}

func (c *Client) UploadImages(files []File) ([]string, error) {
	formFiles := make([]*fiber.FormFile, 0, len(files))
	for _, f := range files {
		formFiles = append(formFiles, &fiber.FormFile{Fieldname: "image", Name: f.Name, Content: f.Content})
	}
	var out []string
	err := c.do(c.authed(fiber.Post(c.url("/post/images"))).FileData(formFiles...).MultipartForm(nil), &out)
	return out, err
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) authed(a *fiber.Agent) *fiber.Agent {
	if token := c.Tokens().AccessToken; token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return a
}

// do sends the request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(a *fiber.Agent, out any) error {
	status, body, errs := a.Timeout(c.timeout).Bytes()
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "send request")
	}
	if status < 200 || status > 299 {
		return decodeError(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, out), "decode response")
}

func decodeError(status int, body []byte) error {
	apiErr := &Error{Status: status}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		return apiErr
	}
	apiErr.Code = "http_error"
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
