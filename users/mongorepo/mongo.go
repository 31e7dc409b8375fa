package mongorepo

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	defaultDBName   = "ordering"
)

var _ users.UserRepo = (*Repo)(nil)

// Repo is the MongoDB-backed user store.
type Repo struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects to MongoDB, pings it and ensures the unique indexes exist.
func New(ctx context.Context, uri string) (*Repo, error) {
	if uri == "" {
		return nil, errors.New("mongo: empty database url")
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}

	r := &Repo{
		client: cli,
		users:  cli.Database(databaseFromURI(uri)).Collection(usersCollection),
	}

	if err := r.ensureIndexes(ctx); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Ping reports whether the primary is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes creates the uniqueness constraints the credential store relies on.
// Phone numbers are optional, so that index only covers documents that have one.
func (r *Repo) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetName("phone_number_unique").SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone_number": bson.M{"$type": "string"}}),
		},
	}

	if _, err := r.users.Indexes().CreateMany(ctx, models); err != nil {
		return errors.Wrap(err, "mongo ensure indexes")
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, user *users.User) error {
	res, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "mongo delete user")
	}
	if res.DeletedCount == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *Repo) GetByIdentifier(ctx context.Context, identifier string) (*users.User, error) {
	if identifier == "" {
		return nil, users.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"phone_number": identifier},
	}})
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "email", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo list users")
	}
	defer cur.Close(ctx)

	out := make([]*users.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "mongo decode users")
	}
	return out, nil
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (*users.User, error) {
	var u users.User
	if err := r.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, users.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "mongo find user")
	}
	return &u, nil
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return users.ErrDuplicateUser
	}
	return errors.Wrap(err, "mongo write user")
}

// databaseFromURI extracts the database name from the mongodb URI path,
// falling back to the default name.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
