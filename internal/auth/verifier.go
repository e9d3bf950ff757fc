package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shoichi/unimart/internal/model"
)

const (
	// defaultCertsURL はGoogleの公開鍵（JWKS）エンドポイント。
	defaultCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

	// issuerBare / issuerURI はGoogleの正規のissuer文字列。両形式を受け付ける。
	issuerBare = "accounts.google.com"
	issuerURI  = "https://accounts.google.com"

	// defaultKeyTTL はCache-Controlヘッダーが読めない場合の公開鍵キャッシュ期間。
	defaultKeyTTL = time.Hour
)

// ErrTokenRejected はIDトークンの検証失敗を表す。
// 署名不正・期限切れ・issuer不一致・ドメイン不一致のいずれでもこのエラーになり、
// どの検証段階で失敗したかは呼び出し側に区別させない。
var ErrTokenRejected = errors.New("id token rejected")

// VerifierConfig はGoogleVerifierの設定。
type VerifierConfig struct {
	ClientID      string
	AllowedDomain string // IDトークンのhdクレームと照合する組織ドメイン

	// テスト用にオーバーライド可能
	CertsURL   string
	HTTPClient *http.Client
}

// GoogleVerifier はGoogle IDトークンの検証を提供する。
// 公開鍵はGoogleのJWKSエンドポイントから取得し、Cache-Controlに従ってキャッシュする。
type GoogleVerifier struct {
	config VerifierConfig
	parser *jwt.Parser

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewGoogleVerifier はGoogleVerifierを生成する。
// HTTPClientが未指定の場合はsafeurlによるSSRF防止付きクライアントを使用する。
func NewGoogleVerifier(config VerifierConfig) *GoogleVerifier {
	if config.CertsURL == "" {
		config.CertsURL = defaultCertsURL
	}
	if config.HTTPClient == nil {
		safeConfig := safeurl.GetConfigBuilder().
			SetTimeout(10 * time.Second).
			SetAllowedSchemes("https").
			SetAllowedPorts(443).
			Build()
		config.HTTPClient = safeurl.Client(safeConfig).Client
	}

	return &GoogleVerifier{
		config: config,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(config.ClientID),
			jwt.WithExpirationRequired(),
		),
		keys: make(map[string]*rsa.PublicKey),
	}
}

// googleClaims はGoogle IDトークンのクレーム。
type googleClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	Name         string `json:"name"`
	HostedDomain string `json:"hd"`
}

// Verify はIDトークンを検証し、認証済みIdentityを返す。
// 署名・期限・audience・issuer・hostedドメインのすべてを検証し、
// いずれかが不正な場合はErrTokenRejectedを返す。部分的なIdentityは返さない。
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*model.Identity, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	claims := &googleClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
	}

	// issuerは裸の形式とURI形式の両方が正規
	if claims.Issuer != issuerBare && claims.Issuer != issuerURI {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenRejected, claims.Issuer)
	}

	// hostedドメインが唯一の認可ゲート
	if claims.HostedDomain != v.config.AllowedDomain {
		return nil, fmt.Errorf("%w: hosted domain mismatch", ErrTokenRejected)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrTokenRejected)
	}

	return &model.Identity{
		SubjectID:    claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		HostedDomain: claims.HostedDomain,
	}, nil
}

// publicKey はkidに対応するRSA公開鍵を返す。
// キャッシュが有効ならキャッシュから、期限切れならJWKSを再取得する。
func (v *GoogleVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	if time.Now().Before(v.expiresAt) {
		if key, ok := v.keys[kid]; ok {
			v.mu.RUnlock()
			return key, nil
		}
	}
	v.mu.RUnlock()

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key found for kid %q", kid)
	}
	return key, nil
}

// jwksResponse はJWKSエンドポイントのレスポンス。
type jwksResponse struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// refreshKeys はJWKSエンドポイントから公開鍵を再取得してキャッシュする。
func (v *GoogleVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.CertsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create certs request: %w", err)
	}

	resp, err := v.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("certs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certs endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read certs response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse certs response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("failed to parse JWK %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("no RSA keys in certs response")
	}

	v.mu.Lock()
	v.keys = keys
	v.expiresAt = time.Now().Add(cacheTTL(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()

	return nil
}

// parseRSAKey はJWKのn/e（base64url）からrsa.PublicKeyを構築する。
func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	eInt := new(big.Int).SetBytes(eBytes)
	if !eInt.IsInt64() || eInt.Int64() <= 0 {
		return nil, fmt.Errorf("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(eInt.Int64()),
	}, nil
}

var maxAgeRe = regexp.MustCompile(`max-age=(\d+)`)

// cacheTTL はCache-Controlヘッダーからキャッシュ期間を決定する。
// 読み取れない場合はdefaultKeyTTLにフォールバックする。
func cacheTTL(cacheControl string) time.Duration {
	m := maxAgeRe.FindStringSubmatch(cacheControl)
	if len(m) != 2 {
		return defaultKeyTTL
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return defaultKeyTTL
	}
	return time.Duration(secs) * time.Second
}
