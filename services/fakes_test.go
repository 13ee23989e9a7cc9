package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/capsule"
	"timinkAPI/internal/types/diary"
	"timinkAPI/internal/types/friendship"
	"timinkAPI/internal/types/user"
)

func syncRun(f func()) { f() }

// fakeUsers

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUsers(us ...*user.User) *fakeUsers {
	f := &fakeUsers{users: map[uuid.UUID]*user.User{}}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) add(name string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &user.User{ID: uuid.New(), ClerkID: "clerk_" + name, Username: name}
	f.users[u.ID] = u
	return u.ID
}

func (f *fakeUsers) Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ClerkID == req.ClerkID {
			u.Email, u.Username = req.Email, req.Username
			return u, nil
		}
	}
	u := &user.User{ID: uuid.New(), ClerkID: req.ClerkID, Email: req.Email, Username: req.Username}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (f *fakeUsers) GetByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ClerkID == clerkID {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	return u, nil
}

func (f *fakeUsers) DeleteByClerkID(ctx context.Context, clerkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.ClerkID == clerkID {
			delete(f.users, id)
		}
	}
	return nil
}

// fakeCapsules

type fakeCapsules struct {
	mu       sync.Mutex
	capsules map[uuid.UUID]*capsule.Capsule
	order    []uuid.UUID
	members  map[uuid.UUID][]*capsule.Member
	contents map[uuid.UUID][]capsule.Content
	notified map[uuid.UUID]bool

	failAddMember map[uuid.UUID]bool
}

func newFakeCapsules() *fakeCapsules {
	return &fakeCapsules{
		capsules:      map[uuid.UUID]*capsule.Capsule{},
		members:       map[uuid.UUID][]*capsule.Member{},
		contents:      map[uuid.UUID][]capsule.Content{},
		notified:      map[uuid.UUID]bool{},
		failAddMember: map[uuid.UUID]bool{},
	}
}

func (f *fakeCapsules) CreateWithOwner(ctx context.Context, c *capsule.Capsule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.capsules[c.ID] = &cp
	f.order = append(f.order, c.ID)
	f.members[c.ID] = []*capsule.Member{{CapsuleID: c.ID, UserID: c.OwnerID, Role: capsule.RoleOwner, Status: capsule.MemberActive}}
	return nil
}

func (f *fakeCapsules) AddMember(ctx context.Context, capsuleID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddMember[userID] {
		return apperr.Transport("add member", io.ErrUnexpectedEOF)
	}
	f.members[capsuleID] = append(f.members[capsuleID], &capsule.Member{CapsuleID: capsuleID, UserID: userID, Role: capsule.RoleMember, Status: capsule.MemberActive})
	return nil
}

func (f *fakeCapsules) membership(capsuleID, userID uuid.UUID) (*capsule.Membership, error) {
	c, ok := f.capsules[capsuleID]
	if !ok || c.Status == capsule.StatusDeleted {
		return nil, apperr.NotFound("capsule")
	}
	for _, m := range f.members[capsuleID] {
		if m.UserID == userID && m.Status == capsule.MemberActive {
			has := false
			for _, ct := range f.contents[capsuleID] {
				if ct.AuthorID == userID {
					has = true
				}
			}
			return &capsule.Membership{Capsule: *c, Member: *m, HasContent: has}, nil
		}
	}
	return nil, apperr.AccessDenied("not a member of this capsule")
}

func (f *fakeCapsules) GetMembership(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membership(capsuleID, userID)
}

func (f *fakeCapsules) ListMemberships(ctx context.Context, userID uuid.UUID) ([]capsule.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []capsule.Membership
	for _, id := range f.order {
		if m, err := f.membership(id, userID); err == nil {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Capsule.UnlockAt.Before(out[j].Capsule.UnlockAt) })
	return out, nil
}

func (f *fakeCapsules) Unlock(ctx context.Context, capsuleID uuid.UUID, now time.Time) (*capsule.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[capsuleID]
	if !ok || c.Status != capsule.StatusLocked || now.Before(c.UnlockAt) {
		return nil, apperr.NotUnlockable("capsule cannot be unlocked")
	}
	c.Status = capsule.StatusUnlocked
	c.UnlockedAt = &now
	cp := *c
	return &cp, nil
}

func (f *fakeCapsules) GetContent(ctx context.Context, capsuleID, authorID uuid.UUID) (*capsule.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ct := range f.contents[capsuleID] {
		if ct.AuthorID == authorID {
			c := ct
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCapsules) InsertContent(ctx context.Context, content *capsule.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ct := range f.contents[content.CapsuleID] {
		if ct.AuthorID == content.AuthorID {
			return apperr.EditLimitReached("content already recorded")
		}
	}
	f.contents[content.CapsuleID] = append(f.contents[content.CapsuleID], *content)
	return nil
}

func (f *fakeCapsules) ListContents(ctx context.Context, capsuleID uuid.UUID) ([]capsule.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capsule.Content(nil), f.contents[capsuleID]...), nil
}

func (f *fakeCapsules) ListActiveMemberIDs(ctx context.Context, capsuleID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range f.members[capsuleID] {
		if m.Status == capsule.MemberActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (f *fakeCapsules) SoftDelete(ctx context.Context, capsuleID, ownerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[capsuleID]
	if !ok || c.OwnerID != ownerID || c.Status == capsule.StatusDeleted {
		return false, nil
	}
	c.Status = capsule.StatusDeleted
	return true, nil
}

func (f *fakeCapsules) SetPinned(ctx context.Context, capsuleID, userID uuid.UUID, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[capsuleID] {
		if m.UserID == userID {
			m.IsPinned = pinned
		}
	}
	return nil
}

func (f *fakeCapsules) ListReadyToNotify(ctx context.Context, now time.Time, limit int) ([]capsule.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []capsule.Capsule
	for _, id := range f.order {
		c := f.capsules[id]
		if c.Status == capsule.StatusLocked && !now.Before(c.UnlockAt) && !f.notified[id] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCapsules) MarkReadyNotified(ctx context.Context, capsuleID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified[capsuleID] = true
	return nil
}

// fakeDiaries

type fakeDiaries struct {
	mu      sync.Mutex
	diaries map[uuid.UUID]*diary.Diary
	members map[uuid.UUID][]uuid.UUID
	pinned  map[uuid.UUID]map[uuid.UUID]bool
	entries []diary.Entry
}

func newFakeDiaries() *fakeDiaries {
	return &fakeDiaries{
		diaries: map[uuid.UUID]*diary.Diary{},
		members: map[uuid.UUID][]uuid.UUID{},
		pinned:  map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (f *fakeDiaries) CreateWithMembers(ctx context.Context, d *diary.Diary, memberIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.diaries[d.ID] = &cp
	f.members[d.ID] = append([]uuid.UUID{d.OwnerID}, memberIDs...)
	f.pinned[d.ID] = map[uuid.UUID]bool{}
	return nil
}

func (f *fakeDiaries) isMember(diaryID, userID uuid.UUID) bool {
	for _, id := range f.members[diaryID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (f *fakeDiaries) view(d *diary.Diary, userID uuid.UUID) diary.Diary {
	v := *d
	v.IsPinned = f.pinned[d.ID][userID]
	for _, e := range f.entries {
		if e.DiaryID == d.ID && e.AuthorID == userID {
			t := e.CreatedAt
			if v.LastEntryByMe == nil || t.After(*v.LastEntryByMe) {
				v.LastEntryByMe = &t
			}
		}
	}
	return v
}

func (f *fakeDiaries) Get(ctx context.Context, diaryID, userID uuid.UUID) (*diary.Diary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.diaries[diaryID]
	if !ok {
		return nil, apperr.NotFound("diary")
	}
	if !f.isMember(diaryID, userID) {
		return nil, apperr.AccessDenied("not a member of this diary")
	}
	v := f.view(d, userID)
	return &v, nil
}

func (f *fakeDiaries) ListForMember(ctx context.Context, userID uuid.UUID) ([]diary.Diary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []diary.Diary
	for id, d := range f.diaries {
		if f.isMember(id, userID) {
			out = append(out, f.view(d, userID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDiaries) ListMemberIDs(ctx context.Context, diaryID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.members[diaryID]...), nil
}

func (f *fakeDiaries) LatestEntryByAuthor(ctx context.Context, diaryID, authorID uuid.UUID) (*diary.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *diary.Entry
	for i := range f.entries {
		e := f.entries[i]
		if e.DiaryID == diaryID && e.AuthorID == authorID && (latest == nil || e.CreatedAt.After(latest.CreatedAt)) {
			latest = &e
		}
	}
	return latest, nil
}

func (f *fakeDiaries) InsertEntry(ctx context.Context, e *diary.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.entries {
		if x.DiaryID == e.DiaryID && x.AuthorID == e.AuthorID && x.PostedDate.Equal(e.PostedDate) {
			return apperr.EditLimitReached("already posted today")
		}
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeDiaries) TouchUpdatedAt(ctx context.Context, diaryID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.diaries[diaryID]; ok {
		d.UpdatedAt = at
	}
	return nil
}

func (f *fakeDiaries) ListEntries(ctx context.Context, diaryID uuid.UUID, limit int) ([]diary.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []diary.Entry
	for _, e := range f.entries {
		if e.DiaryID == diaryID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDiaries) ListEntriesPostedOn(ctx context.Context, userID uuid.UUID, day time.Time) ([]diary.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []diary.Entry
	for _, e := range f.entries {
		if f.isMember(e.DiaryID, userID) && e.PostedDate.Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeDiaries) SetPinned(ctx context.Context, diaryID, userID uuid.UUID, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned[diaryID][userID] = pinned
	return nil
}

// fakeFriendships

type fakeFriendships struct {
	mu    sync.Mutex
	rows  []*friendship.Friendship
	users *fakeUsers
}

func newFakeFriendships(users *fakeUsers) *fakeFriendships {
	return &fakeFriendships{users: users}
}

func (f *fakeFriendships) FindBetween(ctx context.Context, a, b uuid.UUID) (*friendship.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Involves(a) && r.Involves(b) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeFriendships) Insert(ctx context.Context, fr *friendship.Friendship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Involves(fr.RequesterID) && r.Involves(fr.AddresseeID) {
			return apperr.Conflict("friendship already exists")
		}
	}
	cp := *fr
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeFriendships) Get(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("friend request")
}

func (f *fakeFriendships) Transition(ctx context.Context, id, addresseeID uuid.UUID, from, to friendship.FriendshipStatus, at time.Time) (*friendship.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.AddresseeID == addresseeID && r.Status == from {
			r.Status = to
			r.UpdatedAt = at
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeFriendships) Reopen(ctx context.Context, id, requesterID, addresseeID uuid.UUID, at time.Time) (*friendship.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == friendship.FriendshipRejected {
			r.RequesterID, r.AddresseeID = requesterID, addresseeID
			r.Status = friendship.FriendshipPending
			r.UpdatedAt = at
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.Conflict("friend request changed")
}

func (f *fakeFriendships) ListAccepted(ctx context.Context, userID uuid.UUID) ([]friendship.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []friendship.Friend
	for _, r := range f.rows {
		if r.Status == friendship.FriendshipAccepted && r.Involves(userID) {
			other := r.Other(userID)
			name := ""
			if u, err := f.users.GetByID(ctx, other); err == nil {
				name = u.Username
			}
			out = append(out, friendship.Friend{FriendshipID: r.ID, UserID: other, Username: name, Since: r.UpdatedAt})
		}
	}
	return out, nil
}

func (f *fakeFriendships) ListPendingIncoming(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []friendship.FriendRequest
	for _, r := range f.rows {
		if r.Status == friendship.FriendshipPending && r.AddresseeID == userID {
			out = append(out, friendship.FriendRequest{ID: r.ID, RequesterID: r.RequesterID, Status: r.Status, CreatedAt: r.CreatedAt})
		}
	}
	return out, nil
}

func (f *fakeFriendships) DeleteAccepted(ctx context.Context, a, b uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.Status == friendship.FriendshipAccepted && r.Involves(a) && r.Involves(b) {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// fakeNotifications

type fakeNotifications struct {
	mu     sync.Mutex
	rows   []*notification.Notification
	prefs  map[uuid.UUID]*notification.NotificationPreferences
	failed map[uuid.UUID]int
	sent   map[uuid.UUID]bool
	resch  map[uuid.UUID]time.Time
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{
		prefs:  map[uuid.UUID]*notification.NotificationPreferences{},
		failed: map[uuid.UUID]int{},
		sent:   map[uuid.UUID]bool{},
		resch:  map[uuid.UUID]time.Time{},
	}
}

func (f *fakeNotifications) forUser(userID uuid.UUID) []*notification.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotifications) Insert(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotifications) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error) {
	all := f.forUser(userID)
	var out []*notification.Notification
	for _, n := range all {
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, x := range f.forUser(userID) {
		if x.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) CountAll(ctx context.Context, userID uuid.UUID) (int, error) {
	return len(f.forUser(userID)), nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id && n.UserID == userID {
			n.ReadAt = &at
			n.Status = notification.StatusRead
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			n.Status = notification.StatusRead
		}
	}
	return nil
}

func (f *fakeNotifications) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.rows {
		if n.ID == id && n.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifications) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = true
	return nil
}

func (f *fakeNotifications) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id]++
	return f.failed[id], nil
}

func (f *fakeNotifications) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resch[id] = at
	return nil
}

func (f *fakeNotifications) ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.rows {
		if n.Status == notification.StatusPending && n.ScheduledFor != nil && !n.ScheduledFor.After(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) DeleteExpired(ctx context.Context, now, readBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var removed int64
	for _, n := range f.rows {
		if (n.ExpiresAt != nil && n.ExpiresAt.Before(now)) || (n.ReadAt != nil && n.ReadAt.Before(readBefore)) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	f.rows = kept
	return removed, nil
}

func (f *fakeNotifications) GetPreferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeNotifications) SavePreferences(ctx context.Context, prefs *notification.NotificationPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *prefs
	f.prefs[prefs.UserID] = &cp
	return nil
}

// recordingNotifier captures fan-out events.

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingNotifier) ofType(t notification.NotificationType) []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeStore is an in-memory ObjectStore.

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	deleted   []string
	uploadErr error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	url := "https://cdn.test/" + key
	s.objects[url] = b
	return url, nil
}

func (s *fakeStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, url)
	s.deleted = append(s.deleted, url)
	return nil
}
