package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

// memRepo 内存版 Repository，按 MySQL 仓储的语义实现
type memRepo struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]*models.User
	comps    map[uint64]*models.Company
	cvs      map[uint64]*models.CV
	posts    map[uint64]*models.Post
	apps     map[uint64]*models.Application
	follows  []models.Follow
	outbox   []*models.OutboxMessage
	failNext error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users: map[uint64]*models.User{},
		comps: map[uint64]*models.Company{},
		cvs:   map[uint64]*models.CV{},
		posts: map[uint64]*models.Post{},
		apps:  map[uint64]*models.Application{},
	}
}

func (r *memRepo) id() uint64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) takeFail() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memRepo) CreateUser(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.users {
		if other.Email == u.Email {
			return storage.ErrDuplicate
		}
	}
	u.ID = r.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) GetUserByID(_ context.Context, id uint64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRepo) UpdateUser(_ context.Context, id uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "full_name":
			u.FullName = v.(string)
		case "bio":
			u.Bio = v.(string)
		case "phone":
			u.Phone = v.(string)
		case "avatar_key":
			u.AvatarKey = v.(string)
		}
	}
	return nil
}

func (r *memRepo) CreateCompanyWithEvent(_ context.Context, c *models.Company, build func(*models.Company) (*models.OutboxMessage, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFail(); err != nil {
		return err
	}
	for _, other := range r.comps {
		if other.OwnerID == c.OwnerID {
			return storage.ErrDuplicate
		}
	}
	c.ID = r.id()
	msg, err := build(c)
	if err != nil {
		return err
	}
	cp := *c
	r.comps[c.ID] = &cp
	r.outbox = append(r.outbox, msg)
	return nil
}

func (r *memRepo) GetCompanyByID(_ context.Context, id uint64) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetCompanyByOwner(_ context.Context, ownerID uint64) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comps {
		if c.OwnerID == ownerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRepo) ListCompanies(_ context.Context, status string, offset, limit int) ([]models.Company, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Company
	for _, c := range r.comps {
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	return paginate(out, offset, limit), total, nil
}

func (r *memRepo) UpdateCompany(_ context.Context, id uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comps[id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			c.Name = v.(string)
		case "description":
			c.Description = v.(string)
		case "website":
			c.Website = v.(string)
		case "address":
			c.Address = v.(string)
		case "logo_key":
			c.LogoKey = v.(string)
		case "status":
			c.Status = v.(string)
		case "review_note":
			c.ReviewNote = v.(string)
		case "reviewed_at":
			t := v.(time.Time)
			c.ReviewedAt = &t
		}
	}
	return nil
}

func (r *memRepo) CreateCVWithEvent(_ context.Context, cv *models.CV, build func(*models.CV) (*models.OutboxMessage, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFail(); err != nil {
		return err
	}
	cv.ID = r.id()
	cv.CreatedAt = time.Now().Add(time.Duration(cv.ID) * time.Millisecond)
	cv.UpdatedAt = cv.CreatedAt
	msg, err := build(cv)
	if err != nil {
		return err
	}
	cp := *cv
	r.cvs[cv.ID] = &cp
	r.outbox = append(r.outbox, msg)
	return nil
}

func (r *memRepo) GetCV(_ context.Context, id uint64) (*models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *cv
	return &cp, nil
}

func (r *memRepo) ListCVsByUser(_ context.Context, userID uint64) ([]models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.CV{}
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			out = append(out, *cv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memRepo) UpdateCV(_ context.Context, id uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			cv.Status = v.(string)
		case "content_text":
			cv.ContentText = v.(string)
		case "text_key":
			cv.TextKey = v.(string)
		case "text_md5":
			cv.TextMD5 = v.(string)
		case "summary":
			cv.Summary = v.(string)
		}
	}
	cv.UpdatedAt = time.Now()
	return nil
}

func (r *memRepo) DeleteCV(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cvs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.cvs, id)
	return nil
}

func (r *memRepo) SetDefaultCV(_ context.Context, userID, cvID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.cvs[cvID]
	if !ok || target.UserID != userID {
		return storage.ErrNotFound
	}
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			cv.IsDefault = cv.ID == cvID
		}
	}
	return nil
}

func (r *memRepo) ListSearchableCVs(_ context.Context, limit int) ([]models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.CV{}
	for _, cv := range r.cvs {
		u := r.users[cv.UserID]
		if cv.Status != constants.CVStatusParsed || u == nil || u.Role != constants.RoleCandidate {
			continue
		}
		cp := *cv
		uc := *u
		cp.User = &uc
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, 0, limit), nil
}

func (r *memRepo) withRelations(p *models.Post) models.Post {
	cp := *p
	if u, ok := r.users[p.AuthorID]; ok {
		uc := *u
		cp.Author = &uc
	}
	if p.CompanyID != nil {
		if c, ok := r.comps[*p.CompanyID]; ok {
			cc := *c
			cp.Company = &cc
		}
	}
	return cp
}

func (r *memRepo) CreatePost(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	p.CreatedAt = time.Now().Add(time.Duration(p.ID) * time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.posts[p.ID] = &cp
	return nil
}

func (r *memRepo) GetPost(_ context.Context, id uint64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := r.withRelations(p)
	return &cp, nil
}

func (r *memRepo) UpdatePost(_ context.Context, id uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return storage.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "title":
			p.Title = v.(string)
		case "description":
			p.Description = v.(string)
		case "description_text":
			p.DescriptionText = v.(string)
		case "location":
			p.Location = v.(string)
		case "salary":
			p.Salary = v.(string)
		case "status":
			p.Status = v.(string)
		case "end_at":
			t := v.(time.Time)
			p.EndAt = &t
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memRepo) DeletePost(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *memRepo) ListPosts(_ context.Context, f storage.PostFilter) ([]models.Post, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []models.Post
	for _, p := range r.posts {
		switch {
		case f.PostType != "" && p.PostType != f.PostType,
			f.CompanyID > 0 && (p.CompanyID == nil || *p.CompanyID != f.CompanyID),
			f.AuthorID > 0 && p.AuthorID != f.AuthorID,
			f.ExcludeAuthor > 0 && p.AuthorID == f.ExcludeAuthor,
			f.OnlyActive && (p.Status != constants.PostOpen || (p.EndAt != nil && p.EndAt.Before(now))):
			continue
		}
		if f.Keyword != "" && !strings.Contains(p.Title+" "+p.DescriptionText, f.Keyword) {
			continue
		}
		out = append(out, r.withRelations(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	return paginate(out, f.Offset, limit), int64(len(out)), nil
}

func (r *memRepo) ListFeed(_ context.Context, userIDs, companyIDs []uint64, offset, limit int) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in := func(ids []uint64, id uint64) bool {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
		return false
	}
	var out []models.Post
	for _, p := range r.posts {
		if in(userIDs, p.AuthorID) || (p.CompanyID != nil && in(companyIDs, *p.CompanyID)) {
			out = append(out, r.withRelations(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, offset, limit), nil
}

func (r *memRepo) CreateApplication(_ context.Context, a *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.apps {
		if other.PostID == a.PostID && other.ApplicantID == a.ApplicantID {
			return storage.ErrDuplicate
		}
	}
	a.ID = r.id()
	a.CreatedAt = time.Now()
	cp := *a
	r.apps[a.ID] = &cp
	return nil
}

func (r *memRepo) GetApplication(_ context.Context, id uint64) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListApplicationsByPost(_ context.Context, postID uint64) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Application{}
	for _, a := range r.apps {
		if a.PostID != postID {
			continue
		}
		cp := *a
		if u, ok := r.users[a.ApplicantID]; ok {
			uc := *u
			cp.Applicant = &uc
		}
		if cv, ok := r.cvs[a.CVID]; ok {
			cc := *cv
			cp.CV = &cc
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ListApplicationsByApplicant(_ context.Context, applicantID uint64) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Application{}
	for _, a := range r.apps {
		if a.ApplicantID == applicantID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) UpdateApplicationStatus(_ context.Context, id uint64, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func (r *memRepo) CreateFollow(_ context.Context, f *models.Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.follows {
		if other.FollowerID == f.FollowerID && other.TargetType == f.TargetType && other.TargetID == f.TargetID {
			return storage.ErrDuplicate
		}
	}
	f.ID = r.id()
	r.follows = append(r.follows, *f)
	return nil
}

func (r *memRepo) DeleteFollow(_ context.Context, followerID uint64, targetType string, targetID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.follows {
		if f.FollowerID == followerID && f.TargetType == targetType && f.TargetID == targetID {
			r.follows = append(r.follows[:i], r.follows[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *memRepo) ListFollows(_ context.Context, followerID uint64) ([]models.Follow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Follow{}
	for _, f := range r.follows {
		if f.FollowerID == followerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memRepo) CountFollowers(_ context.Context, targetType string, targetID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, f := range r.follows {
		if f.TargetType == targetType && f.TargetID == targetID {
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// memKV 内存版 KeyValue
type memKV struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	sets int
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (k *memKV) Get(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (k *memKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	k.ttl[key] = ttl
	k.sets++
	return nil
}

func (k *memKV) Del(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.data, key)
	}
	return nil
}

// memObjects 内存版 ObjectStore
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func objPath(bucket storage.Bucket, key string) string {
	return string(bucket) + "/" + key
}

func (o *memObjects) Put(_ context.Context, bucket storage.Bucket, key string, reader io.Reader, _ int64, contentType string) error {
	if o.putErr != nil {
		return o.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[objPath(bucket, key)] = buf.Bytes()
	o.types[objPath(bucket, key)] = contentType
	return nil
}

func (o *memObjects) Get(_ context.Context, bucket storage.Bucket, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[objPath(bucket, key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (o *memObjects) Presign(_ context.Context, bucket storage.Bucket, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s/%s?expires=%d", bucket, key, int(expiry.Seconds())), nil
}

func (o *memObjects) Remove(_ context.Context, bucket storage.Bucket, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, objPath(bucket, key))
	return nil
}

func (o *memObjects) count(bucket storage.Bucket) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for k := range o.objects {
		if strings.HasPrefix(k, string(bucket)+"/") {
			n++
		}
	}
	return n
}

// fixture 常用测试数据
type fixture struct {
	repo    *memRepo
	kv      *memKV
	objects *memObjects
}

func newFixture() *fixture {
	return &fixture{repo: newMemRepo(), kv: newMemKV(), objects: newMemObjects()}
}

func (f *fixture) user(role, email string) *models.User {
	u := &models.User{Email: email, FullName: strings.Split(email, "@")[0], Role: role, PasswordHash: "x"}
	if err := f.repo.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) approvedCompany(owner *models.User, name string) *models.Company {
	c := &models.Company{OwnerID: owner.ID, Name: name, Status: constants.CompanyApproved}
	err := f.repo.CreateCompanyWithEvent(context.Background(), c, func(*models.Company) (*models.OutboxMessage, error) {
		return &models.OutboxMessage{}, nil
	})
	if err != nil {
		panic(err)
	}
	return c
}

func (f *fixture) parsedCV(owner *models.User, name, text string) *models.CV {
	cv := &models.CV{UserID: owner.ID, Name: name, Status: constants.CVStatusParsed, ContentText: text, TextMD5: "md5-" + name}
	err := f.repo.CreateCVWithEvent(context.Background(), cv, func(*models.CV) (*models.OutboxMessage, error) {
		return &models.OutboxMessage{}, nil
	})
	if err != nil {
		panic(err)
	}
	return cv
}

func (f *fixture) post(author *models.User, companyID *uint64, postType, title, text string) *models.Post {
	p := &models.Post{AuthorID: author.ID, CompanyID: companyID, PostType: postType, Title: title, DescriptionText: text, Status: constants.PostOpen}
	if err := f.repo.CreatePost(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

var _ Repository = (*memRepo)(nil)
