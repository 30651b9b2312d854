package resource

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Favorites is one resource owner's favorite things.
type Favorites struct {
	Movies []string `json:"movies"`
	Foods  []string `json:"foods"`
	Music  []string `json:"music"`
}

// Produce lists the produce visible to a grant.
type Produce struct {
	Fruit   []string `json:"fruit"`
	Veggies []string `json:"veggies"`
	Meats   []string `json:"meats"`
}

var favorites = map[string]struct {
	name string
	fav  Favorites
}{
	"alice": {"Alice", Favorites{
		Movies: []string{"The Multidmensional Vector", "Space Fights", "Jewelry Boss"},
		Foods:  []string{"bacon", "pizza", "bacon pizza"},
		Music:  []string{"techno", "industrial", "alternative"},
	}},
	"bob": {"Bob", Favorites{
		Movies: []string{"An Unrequited Love", "Several Shades of Turquoise", "Think Of The Children"},
		Foods:  []string{"bacon", "kale", "gravel"},
		Music:  []string{"baroque", "ukulele", "baroque ukulele"},
	}},
}

// Service holds the protected data.
type Service struct {
	mu    sync.Mutex
	words []string
	now   func() time.Time
}

// NewService creates an empty service.
func NewService() *Service {
	return &Service{now: time.Now}
}

// Words returns a copy of the saved words.
func (s *Service) Words() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.words...)
}

// AddWord appends word; empty words are ignored.
func (s *Service) AddWord(word string) {
	if word == "" {
		return
	}
	s.mu.Lock()
	s.words = append(s.words, word)
	s.mu.Unlock()
}

// PopWord removes the last word, if any.
func (s *Service) PopWord() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.words) == 0 {
		return "", false
	}
	w := s.words[len(s.words)-1]
	s.words = s.words[:len(s.words)-1]
	return w, true
}

func (s *Service) handleGetWords(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"words":     strings.Join(s.Words(), " "),
		"timestamp": s.now().UnixMilli(),
	})
}

func (s *Service) handleAddWord(c *gin.Context) {
	s.AddWord(c.PostForm("word"))
	c.Status(http.StatusCreated)
}

func (s *Service) handleDeleteWord(c *gin.Context) {
	s.PopWord()
	c.Status(http.StatusCreated)
}

func (s *Service) handleProduce(c *gin.Context) {
	grant, _ := GrantFromContext(c.Request.Context())
	p := Produce{Fruit: []string{}, Veggies: []string{}, Meats: []string{}}
	if grant.HasScope("fruit") {
		p.Fruit = []string{"apple", "banana", "kiwi"}
	}
	if grant.HasScope("veggies") {
		p.Veggies = []string{"lettuce", "onion", "potato"}
	}
	if grant.HasScope("meats") {
		p.Meats = []string{"bacon", "steak", "chicken breast"}
	}
	c.JSON(http.StatusOK, p)
}

func (s *Service) handleFavorites(c *gin.Context) {
	grant, _ := GrantFromContext(c.Request.Context())
	if f, ok := favorites[grant.Username]; ok {
		c.JSON(http.StatusOK, gin.H{"user": f.name, "favorites": f.fav})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      "Unknown",
		"favorites": Favorites{Movies: []string{}, Foods: []string{}, Music: []string{}},
	})
}

func (s *Service) handleResource(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Protected Resource",
		"description": "This data has been protected by OAuth 2.0",
	})
}

// NewGinEngine builds the resource server router. gatherer may be nil.
func NewGinEngine(guard *Guard, svc *Service, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/")
	api.Use(guard.AuthenticateRequest())
	api.GET("/words", guard.RequireScope("read"), svc.handleGetWords)
	api.POST("/words", guard.RequireScope("write"), svc.handleAddWord)
	api.DELETE("/words", guard.RequireScope("delete"), svc.handleDeleteWord)
	api.GET("/produce", guard.RequireGrant(), svc.handleProduce)
	api.GET("/favorites", guard.RequireGrant(), svc.handleFavorites)
	api.POST("/resource", guard.RequireGrant(), svc.handleResource)
	return r
}
