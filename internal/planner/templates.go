package planner

import "contentcal/api/internal/content"

type template struct {
	titles      []string
	objectives  []string
	description string
}

type templateKey struct {
	contentType content.ContentType
	style       content.ContentStyle
}

// stylesByType lists the styles a content type can be generated with.
var stylesByType = map[content.ContentType][]content.ContentStyle{
	content.TypeBlog:        {content.StyleKnowledge, content.StyleGuide, content.StyleStory, content.StyleStats},
	content.TypeSocial:      {content.StyleKnowledge, content.StyleStory, content.StyleStats, content.StyleTestimonial},
	content.TypeEmail:       {content.StyleGuide, content.StyleStory, content.StyleTestimonial},
	content.TypeInfographic: {content.StyleInfographic, content.StyleStats},
	content.TypeLandingPage: {content.StyleGuide, content.StyleTestimonial},
}

// Titles take the primary keyword as their only verb.
var templates = map[templateKey]template{
	{content.TypeBlog, content.StyleKnowledge}: {
		titles:      []string{"What Every Team Should Know About %s", "%s Explained", "The Fundamentals of %s"},
		objectives:  []string{"Build topical authority", "Educate readers on core concepts"},
		description: "Long-form article covering the essentials.",
	},
	{content.TypeBlog, content.StyleGuide}: {
		titles:      []string{"A Step-by-Step Guide to %s", "How to Get Started With %s", "%s: A Practical Checklist"},
		objectives:  []string{"Drive organic search traffic", "Help readers take the first step"},
		description: "Actionable how-to article with concrete steps.",
	},
	{content.TypeBlog, content.StyleStory}: {
		titles:      []string{"How We Rethought %s", "Lessons Learned From a Year of %s"},
		objectives:  []string{"Build trust through transparency", "Humanize the brand"},
		description: "Narrative post built around a real experience.",
	},
	{content.TypeBlog, content.StyleStats}: {
		titles:      []string{"%s by the Numbers", "10 Statistics About %s You Should Know"},
		objectives:  []string{"Earn backlinks with original data", "Support sales conversations with evidence"},
		description: "Data-driven roundup with sourced figures.",
	},
	{content.TypeSocial, content.StyleKnowledge}: {
		titles:      []string{"Quick Tip: %s", "Did You Know? %s"},
		objectives:  []string{"Grow engagement", "Increase reach"},
		description: "Short educational post.",
	},
	{content.TypeSocial, content.StyleStory}: {
		titles:      []string{"Behind the Scenes: %s", "A Day Working on %s"},
		objectives:  []string{"Grow engagement", "Showcase the team"},
		description: "Short narrative post with an image.",
	},
	{content.TypeSocial, content.StyleStats}: {
		titles:      []string{"One Number About %s", "%s in One Chart"},
		objectives:  []string{"Drive clicks to the latest article", "Spark discussion"},
		description: "Single-statistic post.",
	},
	{content.TypeSocial, content.StyleTestimonial}: {
		titles:      []string{"Customer Spotlight: %s", "What Customers Say About %s"},
		objectives:  []string{"Build social proof", "Support conversion"},
		description: "Quote card from a customer.",
	},
	{content.TypeEmail, content.StyleGuide}: {
		titles:      []string{"Your %s Playbook", "Three Ways to Improve %s This Week"},
		objectives:  []string{"Nurture subscribers", "Drive repeat visits"},
		description: "Newsletter with practical advice.",
	},
	{content.TypeEmail, content.StyleStory}: {
		titles:      []string{"The Story Behind Our %s Work", "Why %s Matters to Us"},
		objectives:  []string{"Strengthen relationships", "Reduce churn"},
		description: "Founder-voice newsletter.",
	},
	{content.TypeEmail, content.StyleTestimonial}: {
		titles:      []string{"How Customers Succeed With %s", "Real Results With %s"},
		objectives:  []string{"Convert trial users", "Upsell existing customers"},
		description: "Case-study newsletter.",
	},
	{content.TypeInfographic, content.StyleInfographic}: {
		titles:      []string{"The %s Lifecycle at a Glance", "A Visual Map of %s"},
		objectives:  []string{"Earn shares and embeds", "Simplify a complex topic"},
		description: "Single-page visual explainer.",
	},
	{content.TypeInfographic, content.StyleStats}: {
		titles:      []string{"%s: Key Numbers Visualized", "The State of %s"},
		objectives:  []string{"Earn shares and embeds", "Support press outreach"},
		description: "Chart-heavy statistics visual.",
	},
	{content.TypeLandingPage, content.StyleGuide}: {
		titles:      []string{"Download: The Complete %s Guide", "Get Your Free %s Toolkit"},
		objectives:  []string{"Capture leads", "Grow the mailing list"},
		description: "Gated resource landing page.",
	},
	{content.TypeLandingPage, content.StyleTestimonial}: {
		titles:      []string{"Trusted for %s", "Why Teams Choose Us for %s"},
		objectives:  []string{"Convert visitors", "Support paid campaigns"},
		description: "Conversion page with customer proof.",
	},
}
