package store

import (
	"context"
	"testing"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryTokenStore(t *testing.T) {
	Convey("Test memory token store", t, func() {
		store, err := NewMemoryTokenStore()
		So(err, ShouldBeNil)
		defer store.Close()
		ctx := context.Background()

		Convey("Test access token store", func() {
			tok := &models.Token{
				Value:     "access-1",
				Kind:      models.KindAccess,
				ClientID:  "client-1",
				Scope:     models.Scope{"read"},
				CreatedAt: time.Now(),
				ExpiresAt: time.Now().Add(time.Hour),
			}
			So(store.Create(ctx, tok), ShouldBeNil)

			got, err := store.GetByAccess(ctx, "access-1")
			So(err, ShouldBeNil)
			So(got.ClientID, ShouldEqual, "client-1")
			So(got.Scope.String(), ShouldEqual, "read")

			_, err = store.GetByRefresh(ctx, "access-1")
			So(err, ShouldEqual, ErrNotFound)

			So(store.RemoveByAccess(ctx, "access-1"), ShouldBeNil)
			_, err = store.GetByAccess(ctx, "access-1")
			So(err, ShouldEqual, ErrNotFound)

			So(store.RemoveByAccess(ctx, "access-1"), ShouldBeNil)
		})

		Convey("Test refresh token without expiry", func() {
			tok := &models.Token{Value: "refresh-1", Kind: models.KindRefresh, ClientID: "client-1", CreatedAt: time.Now()}
			So(store.Create(ctx, tok), ShouldBeNil)

			got, err := store.GetByRefresh(ctx, "refresh-1")
			So(err, ShouldBeNil)
			So(got.ExpiresAt.IsZero(), ShouldBeTrue)

			So(store.RemoveByRefresh(ctx, "refresh-1"), ShouldBeNil)
			_, err = store.GetByRefresh(ctx, "refresh-1")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Test already expired token is not stored", func() {
			tok := &models.Token{Value: "old", Kind: models.KindAccess, ClientID: "c", ExpiresAt: time.Now().Add(-time.Minute)}
			So(store.Create(ctx, tok), ShouldBeNil)
			_, err := store.GetByAccess(ctx, "old")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Test remove access by refresh", func() {
			So(store.Create(ctx, &models.Token{Value: "r1", Kind: models.KindRefresh, ClientID: "c", PairedWith: "a1"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "a1", Kind: models.KindAccess, ClientID: "c", PairedWith: "r1"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "a2", Kind: models.KindAccess, ClientID: "c", PairedWith: "r1"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "a3", Kind: models.KindAccess, ClientID: "c", PairedWith: "R1"}), ShouldBeNil)

			n, err := store.RemoveAccessByRefresh(ctx, "r1")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			_, err = store.GetByAccess(ctx, "a1")
			So(err, ShouldEqual, ErrNotFound)
			_, err = store.GetByAccess(ctx, "a3")
			So(err, ShouldBeNil)
			_, err = store.GetByRefresh(ctx, "r1")
			So(err, ShouldBeNil)
		})

		Convey("Test remove by client id", func() {
			So(store.Create(ctx, &models.Token{Value: "x1", Kind: models.KindAccess, ClientID: "alpha"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "x2", Kind: models.KindRefresh, ClientID: "alpha"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "y1", Kind: models.KindAccess, ClientID: "beta"}), ShouldBeNil)
			So(store.Create(ctx, &models.Token{Value: "z1", Kind: models.KindAccess, ClientID: "ALPHA"}), ShouldBeNil)

			n, err := store.RemoveByClientID(ctx, "alpha")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			_, err = store.GetByAccess(ctx, "x1")
			So(err, ShouldEqual, ErrNotFound)
			_, err = store.GetByRefresh(ctx, "x2")
			So(err, ShouldEqual, ErrNotFound)
			_, err = store.GetByAccess(ctx, "y1")
			So(err, ShouldBeNil)
			_, err = store.GetByAccess(ctx, "z1")
			So(err, ShouldBeNil)

			n, err = store.RemoveByClientID(ctx, "alpha")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}
