package classification

import (
	"time"

	"leadscout/core/domain"
)

// DefaultRuleSet returns the built-in signal rule table, version 0. It is the
// fallback when no rule set has been published to the configuration store,
// and the seed for the first published version.
func DefaultRuleSet() *domain.SignalRuleSet {
	return &domain.SignalRuleSet{
		Version:   0,
		UpdatedBy: "built-in",
		UpdatedAt: time.Time{},
		Patterns: map[string][]string{
			domain.RuleUnsubscribe: {
				`(unsubscribe|opt[-\s]?out|manage preferences|update your preferences|leave this list|darse de baja|cancelar suscripci[oó]n|si no quieres recibir m[aá]s correos|no deseas recibir estos correos electr[oó]nicos|gestionar preferencias|se d[ée]sabonner|se d[ée]sinscrire|g[eé]rer vos pr[eé]f[eé]rences)`,
			},
			domain.RulePressRelease: {
				`(nota de prensa|ndp[\s_:]|ndp\b|press release|news release|comunicado de prensa|press kit)`,
			},
			domain.RulePRAssets: {
				`(descarga de im[aá]genes|download (the )?images|download photos|press photos|media assets|descarga de siluetas)`,
			},
			domain.RulePRFooter: {
				`(departamento de comunicaci[oó]n|dpto\. de comunicaci[oó]n|press office|press contact|pr agency|agencia de comunicaci[oó]n|gabinete de prensa|press@|media@)`,
				`\b(sobre|about)\s+[a-z0-9&.\- ]{2,40}:`,
			},
			domain.RuleEventKeywords: {
				`(evento\b|event\b|festival\b|festivales\b|concierto\b|concert\b|show\b|exhibici[oó]n\b|exhibition\b|opening\b|inauguraci[oó]n\b|performance\b|tour\b|gira\b|screening\b|premiere\b|obra de teatro|play\b|exposici[oó]n\b|fair\b|feria\b)`,
			},
			domain.RuleCoverageAsk: {
				`(we would love (you|you guys) to feature|we'd love (you|you guys) to feature|feature (us|our (event|show|brand|product))|write (about us|an article about)|article about our|cover our (event|story|brand|festival|concert|show|exhibition)|editorial (coverage|feature)|media coverage|blog post about|review our (event|product|show)|publicar (una noticia|un art[ií]culo) sobre|que habl[eé]is de (nuestro|nuestra)|nos gustar[ií]a salir en vuestro medio)`,
				`(free coverage\b|(press |media )?coverage of our (event|show|festival|concert|exhibition|brand|product|story)|cobertura (gratuita|de nuestro (evento|festival|concierto)))`,
			},
			domain.RuleExplicitFree: {
				`(for free|free of charge|at no cost|sin coste|sin costo|gratuito\b|de forma gratuita|no budget for paid media|no tenemos presupuesto para (publicidad|paid)|no paid (media|budget)|no budget available)`,
			},
			domain.RuleEventInvite: {
				`(we would love to invite you|we'd love to invite you|we would like to invite you|we'd like to invite you|we invite you to|you're invited to|you are invited to|join us for (a )?(press|media|vip)?\s?(event|screening|tour|preview|opening|visit)|te invitamos a|nos gustar[ií]a invitarte|invitaci[oó]n a (un|una) (evento|pase|proyecci[oó]n)|private tour|guided tour)`,
			},
			domain.RuleCallSlots: {
				`(book a (call|meeting)|schedule (a )?(call|meeting)|pick a slot|choose a time|select a time|time slot|drop in anytime between\s+\d|from \d{1,2}(am|pm)\s+to\s+\d{1,2}(am|pm)|agenda una llamada|concertar una llamada)`,
			},
			domain.RulePricing: {
				`(rate card|ratecard|media kit\b|mediakit|pricing|price list|tariff|tarifs|tarifa|price (catalog|catalogue)|cat[aá]logo de precios|c[oó]mo (cobr[aá]is|factur[aá]is)|how much (do you charge|would it cost)|cost of (a )?(campaign|post|article|placement)|what are your (rates|fees)|precios de (publicidad|anuncios)|cu[aá]nto cuesta (anunciarse|una campa[nñ]a)|quel serait (le|un) prix|what would be the (price|cost)|discuss (the )?(possibility of )?advertising|banner advertising|guest (post|article|publication)|publish (an|a) (article|guest post)|publication (price|cost|rate)|advertising (price|cost|rate|format)|dofollow (link|lien)|send (your|us the) (media kit|rate card))`,
			},
			domain.RulePartnership: {
				`(we (would like|want|are looking|are interested)( to)? (partner|collaborate|work together|explore a partnership|explore collaboration)|would you (like|be interested) (to )?(partner|collaborate)|are you interested in (a )?(partnership|collaboration|media partnership)|partnership proposal( for you| with you|\b)|propuesta de colaboraci[oó]n (con vosotros|con ustedes|contigo)|queremos (colaborar|trabajar) (con vosotros|con ustedes|contigo)|buscamos (colaboradores|partners?|socios comerciales))`,
			},
			domain.RulePlatformAsk: {
				`(advertise (with you|on your (site|app|platform))|run (a )?campaign with you|use your (platform|app|site) to (sell tickets|promote our events)|ticketing partner for our events|use your ticketing solution|use your services for (ticketing|marketing|promotion))`,
			},
			domain.RuleContentAsk: {
				`(pitch (some )?content\b|creat(e|ing) (a )?post (for|on) your (site|blog|website|page)|guest post\b|write a guest post|guest article|creat(e|ing) (some )?content for your (site|blog|website|publication|magazine|channels|audience)|shoot (some )?content (together|with you)|content (collab|collaboration|partnership))`,
			},
			domain.RuleBarterTerms: {
				`(in exchange for|a cambio de|in return for)`,
			},
			domain.RuleBudgetTerms: {
				`(budget|fee\b|fees\b|commission|rev[-\s]?share|revenue share|flat fee|cpm\b|cpc\b|media spend|media budget|sponsorship package|per month|per year|contract value|minimum guarantee|minimum spend|package deal|agency discount)`,
			},
			domain.RuleScopeTerms: {
				`\d+\s+(articles?|posts?|pieces?|placements?|campaigns?|collaborations?)\s+(per\s+(month|week|year)|monthly|weekly|annually|ongoing)`,
				`(up to|minimum|at least|around|approximately)\s+\d+\s+(articles?|posts?|pieces?|placements?)`,
				`(ongoing|regular|monthly|weekly)\s+(collaborations?|partnerships?|campaigns?)`,
			},
			domain.RuleBigBrands: {
				`(coca[-\s]?cola|pepsi|nike\b|adidas\b|uber\b|bolt\b|amazon\b|google\b|meta\b|facebook\b|instagram\b|tiktok\b|spotify\b|netflix\b|airbnb\b|booking\.com|apple\b|samsung\b|microsoft\b|paypal\b|visa\b|mastercard\b|ubereats|doordash|deliveroo)`,
			},
			domain.RuleLargeBudget: {
				`(50k|60k|70k|80k|90k|100k|200k|250k|300k|400k|500k)`,
				`\b(50|60|70|80|90|100|200|250|300|400|500)[,.]000\b`,
				`[€$£]\s?(50|60|70|80|90|100|200|250|300|400|500)[,. ]?000`,
				`(more than 50|m[aá]s de 50|over 50|above 50)`,
			},
			domain.RuleMultiYear: {
				`(multi[-\s]?year|multi[-\s]?annual|3[-\s]?years?|five[-\s]?year|5[-\s]?year|long[-\s]?term)`,
			},
			domain.RuleMultiMarket: {
				`(nationwide|country[-\s]?wide|multi[-\s]?market|multi[-\s]?country|global campaign|international campaign)`,
			},
			domain.RuleNoLeadPhrases: {
				`(no (clear )?(commercial|business|revenue[-\s]?generating) intent|no (real|meaningful) business opportunity|not (a )?(business|commercial|potential) (lead|opportunity)|not a potential lead|no potential (business )?lead|does not look like (a )?(lead|opportunity)|doesn't look like (a )?(lead|opportunity)|does not represent (a )?(deal|business opportunity|partnership)|purely (informational|transactional|operational)|just a notification|just an? (info|information) (email|message)|no sales intent|no buying intent|no purchase intent|no partnership intent|no collaboration intent|test (email|message) with no business context|not a (real )?lead\b|should be discarded|should be classified as discard)`,
			},
			domain.RuleTestPhrases: {
				`(test email|test message|correo de prueba|email de prueba|mensaje de prueba)`,
			},
			domain.RuleSocialSenders: {
				`(instagram\.com|facebookmail\.com)`,
			},
			domain.RuleSocialNotify: {
				`(new login|we'?ve noticed a new login|security alert|unusual activity|password reset|verification code|your instagram post|is getting more comments than usual|more comments than usual|more likes than usual|view (updates|photos) on instagram|see what you'?ve missed on instagram|tienes \d+ notificaci[oó]n|ver las novedades de instagram)`,
			},
		},
	}
}
