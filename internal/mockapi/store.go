package mockapi

import (
	"sort"
	"sync"
)

// Post is the resource served under /posts.
type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Store is an in-memory post collection safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	posts  map[int]Post
	nextID int
}

// NewStore returns a store seeded with a few posts.
func NewStore() *Store {
	s := &Store{posts: make(map[int]Post), nextID: 1}
	for i, title := range []string{
		"sunt aut facere repellat provident",
		"qui est esse",
		"ea molestias quasi exercitationem",
		"eum et est occaecati",
		"nesciunt quas odio",
	} {
		s.create(Post{UserID: i%2 + 1, Title: title, Body: "quia et suscipit"})
	}
	return s
}

// List returns all posts ordered by id. A non-zero userID filters by author.
func (s *Store) List(userID int) []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if userID != 0 && p.UserID != userID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Get(id int) (Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	return p, ok
}

// Create stores p under a new id and returns it.
func (s *Store) Create(p Post) Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(p)
}

func (s *Store) create(p Post) Post {
	p.ID = s.nextID
	s.nextID++
	s.posts[p.ID] = p
	return p
}

// Update applies fn to a copy of the post with the given id and stores the copy only when
// fn succeeds.
func (s *Store) Update(id int, fn func(*Post) error) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	if err := fn(&p); err != nil {
		return Post{}, err
	}
	p.ID = id
	s.posts[id] = p
	return p, nil
}

func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return false
	}
	delete(s.posts, id)
	return true
}
